// Package blacklist maintains a hot-reloadable phrase list. Messages
// matching any phrase are suppressed before they reach intent routing.
package blacklist

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// List is a phrase list backed by a plain text file, one phrase per
// line. A missing file means an empty list, not an error.
type List struct {
	path string

	mu      sync.RWMutex
	phrases []string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New loads the phrase file at path and starts watching it for changes.
// When the watch cannot be established (e.g. the directory does not
// exist yet), the list still works with its initial contents.
func New(path string) *List {
	l := &List{
		path: path,
		done: make(chan struct{}),
	}
	l.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("blacklist watch unavailable, list is static", "path", path, "error", err)
		return l
	}
	// Watch the directory, not the file: editors replace files on save
	// and a file watch dies with the old inode.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("blacklist watch unavailable, list is static", "dir", dir, "error", err)
		_ = watcher.Close()
		return l
	}
	l.watcher = watcher
	go l.watch()
	return l
}

func (l *List) watch() {
	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				l.reload()
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("blacklist watch error", "error", err)
		}
	}
}

// reload re-reads the phrase file. Blank lines are skipped; phrases are
// stored lowercased for case-insensitive matching.
func (l *List) reload() {
	f, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("blacklist read failed", "path", l.path, "error", err)
		}
		l.set(nil)
		return
	}
	defer f.Close()

	var phrases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			phrases = append(phrases, strings.ToLower(word))
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("blacklist read failed", "path", l.path, "error", err)
	}
	l.set(phrases)
}

func (l *List) set(phrases []string) {
	l.mu.Lock()
	l.phrases = phrases
	l.mu.Unlock()
}

// Match reports whether text contains any blacklisted phrase,
// case-insensitively.
func (l *List) Match(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, phrase := range l.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Len returns the current phrase count.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.phrases)
}

// Close stops the file watcher.
func (l *List) Close() error {
	close(l.done)
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}
