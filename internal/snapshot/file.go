package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

// FileStore keeps the snapshot as a single JSON file, the local-storage slot
// of a storefront process. Writes go through a temp file and rename so a
// crash mid-write never leaves a truncated snapshot behind.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) *cart.Cart {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("snapshot load error: %v", err)
		}
		return cart.New("")
	}

	c, err := Decode(data)
	if err != nil {
		log.Printf("snapshot corrupt, starting empty: %v", err)
		return cart.New("")
	}
	return c
}

func (s *FileStore) Save(_ context.Context, c *cart.Cart) {
	data, err := Encode(c)
	if err != nil {
		log.Printf("snapshot encode error: %v", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("snapshot save error: %v", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("snapshot save error: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("snapshot save error: %v", err)
	}
}
