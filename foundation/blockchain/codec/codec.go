// Package codec compresses transaction payloads before they are encrypted
// into a block and reverses that on read.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ErrCorruptPayload is returned when bytes are not a valid compressed stream.
var ErrCorruptPayload = errors.New("corrupt payload")

// Compress returns the zlib stream for the specified text. The output is
// deterministic for the same input.
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer

	w := zlib.NewWriter(&buf)
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress. A malformed header, truncated stream or
// checksum mismatch produces an error wrapping ErrCorruptPayload.
func Decompress(data []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorruptPayload, err)
	}
	defer r.Close()

	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorruptPayload, err)
	}

	return string(text), nil
}
