// Package files has small filesystem helpers shared across the repo.
package files

import "os"

// Exists reports whether path exists, whatever its type.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
