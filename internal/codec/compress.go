package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxDecodedBytes bounds the decompressed payload size. Carrier
// images are attacker-controlled input, so the expansion is always capped.
const DefaultMaxDecodedBytes = 10 << 20 // 10 MiB

// Compress wraps data in a gzip stream (DEFLATE body plus CRC-32 trailer),
// so any conformant gzip implementation can decode the payload.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a gzip stream produced by Compress.
//
// A truncated stream or a checksum mismatch fails with ErrCorruptStream
// rather than returning partial bytes. maxBytes caps the decoded size
// (ErrPayloadTooLarge beyond it); zero or negative selects
// DefaultMaxDecodedBytes.
func Decompress(data []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDecodedBytes
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	defer zr.Close()

	// Read one byte past the cap so overflow is distinguishable from an
	// exact fit. The gzip reader validates the CRC when it reaches EOF.
	out, err := io.ReadAll(io.LimitReader(zr, int64(maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	if len(out) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	return out, nil
}
