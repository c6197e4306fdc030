// Package paths prepares the on-disk layout the service writes into.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IncomingPrefix marks partial uploads that have not been promoted yet.
const IncomingPrefix = ".incoming-"

// Ensure creates every dir, with missing ancestors. Existing dirs are left
// alone so it is safe to call on every boot.
func Ensure(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return nil
}

// SweepIncoming removes partial uploads in dir last modified before
// olderThan ago. It returns how many files were removed.
func SweepIncoming(dir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), IncomingPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
