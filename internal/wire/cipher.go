package wire

import (
	"errors"
	"fmt"
)

// ErrCipher marks a failed decryption of a sync payload. Frames failing
// with it are dropped without touching the read loop.
var ErrCipher = errors.New("wire: decrypt failed")

// Decrypter turns a vendor-encrypted sync payload into bytes the binary
// object decoder understands. The algorithm is proprietary and supplied
// separately; everything behind this interface is algorithm-agnostic.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DecrypterFunc adapts a plain function to the Decrypter interface.
type DecrypterFunc func(ciphertext []byte) ([]byte, error)

// Decrypt implements Decrypter.
func (f DecrypterFunc) Decrypt(ciphertext []byte) ([]byte, error) {
	return f(ciphertext)
}

// UnconfiguredDecrypter rejects every payload. It is the default wiring
// until the reverse-engineered vendor routine is plugged in; with it in
// place, encrypted frames classify as Unrecognized and the connection
// still stays healthy (acks and heartbeats are unaffected).
type UnconfiguredDecrypter struct{}

// Decrypt implements Decrypter.
func (UnconfiguredDecrypter) Decrypt([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: no decrypter configured", ErrCipher)
}
