package util

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const partSuffix = ".part"

// PartFile is written next to its destination
// and only moved into place by Commit.
type PartFile struct {
	*os.File
	dest string
}

// CreatePartFile creates the parent directories of dest
// and opens dest.part for writing.
func CreatePartFile(dest string) (*PartFile, error) {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(dest + partSuffix)
	if err != nil {
		return nil, err
	}
	return &PartFile{File: file, dest: dest}, nil
}

func (f *PartFile) Commit() error {
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	if err := os.Rename(f.Name(), f.dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", f.Name(), err)
	}
	return nil
}

// Discard closes and removes the partial file.
func (f *PartFile) Discard() {
	f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		zap.S().Warnf("failed to remove %s: %v", f.Name(), err)
	}
}
