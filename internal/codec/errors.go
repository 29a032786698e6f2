// Package codec implements the visual data-interchange format: dataset
// serialization, gzip compression, capacity planning and the two carrier
// image strategies (QR symbol and steganographic bitmap).
//
// The package is a pure function set over byte buffers and images. It has no
// knowledge of storage or transport; callers feed it datasets and images.
package codec

import "errors"

// Codec errors. All are recoverable at the call boundary and are wrapped
// with context where they occur, so errors.Is works on every return path.
var (
	// ErrEncodingFailed reports a dataset serialization failure. Should be
	// unreachable for valid in-memory data but is surfaced, never dropped.
	ErrEncodingFailed = errors.New("dataset encoding failed")

	// ErrMalformed reports decoded bytes that are not a valid dataset:
	// missing required fields, wrong types, or unparseable JSON.
	ErrMalformed = errors.New("malformed dataset")

	// ErrCompressionFailed reports a compressor failure on the encode side.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrCorruptStream reports a compressed stream whose checksum does not
	// validate or which is truncated.
	ErrCorruptStream = errors.New("corrupt compressed stream")

	// ErrPayloadTooLarge reports a decompressed payload exceeding the
	// configured ceiling (decompression bomb defense).
	ErrPayloadTooLarge = errors.New("decoded payload exceeds size limit")

	// ErrDataTooLarge reports a compressed payload that does not fit the
	// carrier. User-actionable: remove data and retry.
	ErrDataTooLarge = errors.New("payload exceeds carrier capacity")

	// ErrImageGenerationFailed reports a carrier construction failure,
	// e.g. the QR engine rejected the input.
	ErrImageGenerationFailed = errors.New("carrier image generation failed")

	// ErrInvalidData reports decode-side input that is not a recognizable
	// carrier: bad base64, unreadable image, or a truncated bit stream.
	ErrInvalidData = errors.New("invalid carrier data")
)
