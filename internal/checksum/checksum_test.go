package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderEmpty(t *testing.T) {
	got, err := Reader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("Reader(\"\") = %s, want %s", got, want)
	}
}

func TestFileMatchesReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, []byte("ngic release archive"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	fromFile, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	fromReader, err := Reader(strings.NewReader("ngic release archive"))
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	if fromFile != fromReader {
		t.Errorf("File() = %s, Reader() = %s", fromFile, fromReader)
	}
	if !Valid(fromFile) {
		t.Errorf("Valid(%s) = false", fromFile)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("File() on missing path should fail")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"abc", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("A", 64), false},
		{strings.Repeat("g", 64), false},
		{strings.Repeat("0", 65), false},
	}
	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
