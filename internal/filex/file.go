package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrEmptyFile = errors.New("file is empty")

// OpenRegular opens path for reading and returns its size. Directories and
// empty files are rejected.
func OpenRegular(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s: not a regular file", path)
	}
	if fi.Size() == 0 {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return f, fi.Size(), nil
}

// ReadChunk reads exactly n bytes at offset off.
func ReadChunk(r io.ReaderAt, off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(r, off, n), buf); err != nil {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
	}
	return buf, nil
}
