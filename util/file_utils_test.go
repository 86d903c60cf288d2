package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPartFileCommit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out.ts")
	file, err := CreatePartFile(dest)
	if err != nil {
		t.Fatalf("CreatePartFile: %v", err)
	}
	if _, err := file.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("destination must not exist before Commit")
	}
	if err := file.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := os.Stat(dest + partSuffix); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestPartFileDiscard(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.ts")
	file, err := CreatePartFile(dest)
	if err != nil {
		t.Fatalf("CreatePartFile: %v", err)
	}
	file.Discard()
	for _, path := range []string{dest, dest + partSuffix} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", path)
		}
	}
}
