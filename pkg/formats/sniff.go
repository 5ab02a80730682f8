package formats

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/h2non/filetype"
)

// ErrInflatedTooLarge is returned when a compressed file expands past its limit.
var ErrInflatedTooLarge = errors.New("decompressed size exceeds limit")

// IsGzip reports whether data starts with a gzip header.
func IsGzip(data []byte) bool {
	return filetype.Is(data, "gz")
}

// Inflate returns the decompressed contents of gzip data, or data unchanged
// when it is not compressed. .stpz files are gzip-wrapped STEP text. A limit
// of 0 disables the size check.
func Inflate(data []byte, limit int64) ([]byte, error) {
	if !IsGzip(data) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrInflatedTooLarge, limit)
	}
	return out, nil
}
