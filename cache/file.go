package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// FileBackend stores entries as age-encrypted files in a directory. Each
// entry is encrypted to the identity's recipient.
type FileBackend struct {
	dir string
	id  *age.X25519Identity
	rec *age.X25519Recipient
}

var _ Backend = (*FileBackend)(nil)

// OpenFileBackend opens a backend in dir, creating the directory if needed.
func OpenFileBackend(dir string, id *age.X25519Identity) (*FileBackend, error) {
	if id == nil {
		return nil, fmt.Errorf("cache: missing identity")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &Error{Op: "open", Key: dir, Err: err}
	}
	return &FileBackend{dir: dir, id: id, rec: id.Recipient()}, nil
}

func (b *FileBackend) filename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+".age")
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	f, err := os.Open(b.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	defer f.Close()

	r, err := age.Decrypt(f, b.id)
	if err != nil {
		return nil, false, err
	}
	value, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *FileBackend) Put(key string, value []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, b.rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	// Write to a temporary file first so that readers never see a
	// partial entry.
	tmp, err := os.CreateTemp(b.dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), b.filename(key))
}

func (b *FileBackend) Remove(key string) error {
	err := os.Remove(b.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (b *FileBackend) Close() error {
	return nil
}
