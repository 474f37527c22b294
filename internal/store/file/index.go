package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// IndexFile is the index file name inside the data directory.
const IndexFile = "accounts_index.txt"

// Index is the ordered set of account numbers, one per line, in append order.
type Index struct {
	path string
}

// NewIndex returns an index backed by the file at path.
func NewIndex(path string) *Index { return &Index{path: path} }

// List returns all keys in file order. A missing file is an empty index.
func (ix *Index) List() ([]string, error) {
	data, err := os.ReadFile(ix.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		k := strings.TrimSpace(sc.Text())
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys, sc.Err()
}

// Contains reports whether key is present.
func (ix *Index) Contains(key string) (bool, error) {
	keys, err := ix.List()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// Append adds key at the end. The key is persisted only if it returns nil.
func (ix *Index) Append(key string) error {
	f, err := os.OpenFile(ix.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open index for append: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s\n", key); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to index: %w", err)
	}
	if err := syncFile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	return f.Close()
}

// Remove rewrites the index without key into a fresh file and swaps it in.
// If the swap fails the previous index is left untouched.
func (ix *Index) Remove(key string) error {
	keys, err := ix.List()
	if err != nil {
		return err
	}
	var b bytes.Buffer
	for _, k := range keys {
		if k != key {
			b.WriteString(k)
			b.WriteByte('\n')
		}
	}
	return writeAtomic(ix.path, b.Bytes())
}
