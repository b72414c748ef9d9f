package blacklist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeList(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestMatchCaseInsensitiveSubstring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hmd.txt")
	writeList(t, path, "代付\nWeChat\n\n  刷单  \n")

	l := New(path)
	defer l.Close()

	tests := []struct {
		text string
		want bool
	}{
		{"可以代付吗", true},
		{"add me on wechat", true},
		{"Add me on WECHAT", true},
		{"帮我刷单", true},
		{"正常咨询商品", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := l.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMissingFileMeansEmptyList(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent.txt"))
	defer l.Close()

	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
	if l.Match("anything") {
		t.Error("empty list matched")
	}
}

func TestHotReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hmd.txt")
	writeList(t, path, "old-phrase\n")

	l := New(path)
	defer l.Close()

	if !l.Match("contains old-phrase here") {
		t.Fatal("initial load missed phrase")
	}

	writeList(t, path, "new-phrase\n")

	// The watcher delivers asynchronously; poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if l.Match("has new-phrase now") && !l.Match("contains old-phrase here") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("reload did not pick up file change")
}

func TestFileCreatedAfterStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hmd.txt")

	l := New(path)
	defer l.Close()

	writeList(t, path, "spam\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if l.Match("this is spam") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("list never loaded the newly created file")
}
