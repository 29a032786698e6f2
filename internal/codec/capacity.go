package codec

// Carrier geometry constants. These are a wire convention: changing any of
// them breaks decoding of previously exported images.
const (
	// LengthPrefixBytes is the fixed-width big-endian byte count embedded
	// before the payload bits, so the decoder recovers the exact length
	// without carrier-size heuristics.
	LengthPrefixBytes = 4

	// StegoBitsPerChannel is the number of least-significant bits modulated
	// per color channel.
	StegoBitsPerChannel = 1

	// StegoChannelsPerPixel is the number of channels carrying payload bits
	// per pixel (R, G, B in that order; alpha is never touched).
	StegoChannelsPerPixel = 3

	// QRCapacityBytes is the configured carrier constant for the QR
	// strategy: the binary capacity of the largest symbol version. The
	// compressed payload is checked against it directly; the base64
	// expansion is the QR engine's concern.
	QRCapacityBytes = 2953
)

// StegoCapacity returns the maximum payload byte count a pixel grid of the
// given dimensions can carry, excluding headerRows decorative rows and the
// length prefix. Returns 0 when the grid cannot hold even the prefix.
func StegoCapacity(width, height, headerRows int) int {
	payloadRows := height - headerRows
	if width <= 0 || payloadRows <= 0 {
		return 0
	}
	bits := payloadRows * width * StegoChannelsPerPixel * StegoBitsPerChannel
	capacity := bits/8 - LengthPrefixBytes
	if capacity < 0 {
		return 0
	}
	return capacity
}
