package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// rename and syncFile are swapped in tests to simulate disk failures.
var (
	rename   = os.Rename
	syncFile = (*os.File).Sync
)

// writeAtomic writes data to a fresh file next to path and renames it over
// path. On any failure path keeps its previous content.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = syncFile(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
