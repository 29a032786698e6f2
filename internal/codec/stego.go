package codec

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
)

// Default carrier generation limits for the stego strategy.
const (
	// DefaultStegoMaxPixels caps the payload pixel area of generated
	// carriers (1024x1024, roughly 393 KiB of payload at 3 bits per pixel).
	DefaultStegoMaxPixels = 1 << 20

	// stegoNeutralFill is the channel value for pixels and channels that
	// carry no payload bit. Mid-gray with a cleared least-significant bit.
	stegoNeutralFill = 0x7e
)

// Stego embeds payload bytes directly into pixel data by modulating the
// least-significant bit of each color channel.
//
// Wire convention: a 4-byte big-endian length prefix followed by the
// payload, one bit per channel, bits most-significant first, channels in
// R,G,B order, pixels scanned row-major. The first Header rows carry no
// payload bits and are skipped symmetrically on encode and decode.
//
// Decoding survives lossless re-encoding of the carrier but not lossy
// recompression, scaling or color-space conversion: the bit positions are
// exact-value dependent.
type Stego struct {
	Header    int // decorative rows at the top, excluded from payload
	MaxPixels int // cap on the payload pixel area of generated carriers
}

// DefaultStego returns the strategy with the shared banner offset
// convention and the default carrier size cap.
func DefaultStego() Stego {
	return Stego{Header: BannerRows, MaxPixels: DefaultStegoMaxPixels}
}

func (s Stego) Name() string { return "stego" }

// HeaderRows returns the fixed number of decorative rows reserved at the
// top of generated carriers.
func (s Stego) HeaderRows() int { return s.Header }

// MaxCapacity returns the maximum payload byte count a generated carrier
// can hold under the configured pixel cap.
func (s Stego) MaxCapacity() int {
	maxPixels := s.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultStegoMaxPixels
	}
	capacity := maxPixels*StegoChannelsPerPixel*StegoBitsPerChannel/8 - LengthPrefixBytes
	if capacity < 0 {
		return 0
	}
	return capacity
}

// Encode generates a carrier sized to exactly fit the length-prefixed
// payload and embeds it. The returned image still has blank header rows;
// the caller draws the banner into them.
func (s Stego) Encode(payload []byte) (image.Image, error) {
	if len(payload) > s.MaxCapacity() {
		return nil, fmt.Errorf("%w: %d bytes, carrier limit %d", ErrDataTooLarge, len(payload), s.MaxCapacity())
	}

	prefixed := make([]byte, LengthPrefixBytes+len(payload))
	binary.BigEndian.PutUint32(prefixed, uint32(len(payload)))
	copy(prefixed[LengthPrefixBytes:], payload)

	totalBits := len(prefixed) * 8
	perPixel := StegoChannelsPerPixel * StegoBitsPerChannel
	pixels := (totalBits + perPixel - 1) / perPixel

	width := int(math.Ceil(math.Sqrt(float64(pixels))))
	if s.Header > 0 && width < bannerMinWidth {
		// Keep the banner legible on tiny payloads.
		width = bannerMinWidth
	}
	payloadRows := (pixels + width - 1) / width
	height := s.Header + payloadRows

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := img.PixOffset(x, y)
			fill := byte(stegoNeutralFill)
			if y < s.Header {
				fill = 0xff // banner background
			}
			img.Pix[off+0] = fill
			img.Pix[off+1] = fill
			img.Pix[off+2] = fill
			img.Pix[off+3] = 0xff
		}
	}

	bit := 0
	for y := s.Header; y < height && bit < totalBits; y++ {
		for x := 0; x < width && bit < totalBits; x++ {
			off := img.PixOffset(x, y)
			for ch := 0; ch < StegoChannelsPerPixel && bit < totalBits; ch++ {
				b := (prefixed[bit/8] >> (7 - uint(bit%8))) & 1
				img.Pix[off+ch] = stegoNeutralFill | b
				bit++
			}
		}
	}

	return img, nil
}

// Decode reads the length prefix and exactly that many payload bytes back
// out of a carrier, ignoring any trailing pixels beyond the declared
// length.
func (s Stego) Decode(img image.Image) ([]byte, error) {
	r := newBitReader(img, s.Header)

	header := make([]byte, LengthPrefixBytes)
	if err := r.readBytes(header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)

	// The declared length can never exceed what the grid can hold.
	bounds := img.Bounds()
	if int64(length) > int64(StegoCapacity(bounds.Dx(), bounds.Dy(), s.Header)) {
		return nil, fmt.Errorf("%w: declared payload of %d bytes exceeds carrier capacity", ErrInvalidData, length)
	}

	payload := make([]byte, length)
	if err := r.readBytes(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// bitReader walks payload bits out of a carrier in the fixed scan order.
type bitReader struct {
	img        image.Image
	x, y       int
	ch         int
	minX, maxX int
	maxY       int
}

func newBitReader(img image.Image, headerRows int) *bitReader {
	bounds := img.Bounds()
	return &bitReader{
		img:  img,
		x:    bounds.Min.X,
		y:    bounds.Min.Y + headerRows,
		minX: bounds.Min.X,
		maxX: bounds.Max.X,
		maxY: bounds.Max.Y,
	}
}

func (r *bitReader) readBit() (byte, error) {
	if r.y >= r.maxY {
		return 0, fmt.Errorf("%w: truncated bit stream", ErrInvalidData)
	}
	red, green, blue, _ := r.img.At(r.x, r.y).RGBA()
	channels := [StegoChannelsPerPixel]uint32{red, green, blue}
	bit := byte(channels[r.ch]>>8) & 1

	r.ch++
	if r.ch == StegoChannelsPerPixel {
		r.ch = 0
		r.x++
		if r.x == r.maxX {
			r.x = r.minX
			r.y++
		}
	}
	return bit, nil
}

func (r *bitReader) readBytes(dst []byte) error {
	for i := range dst {
		var b byte
		for j := 0; j < 8; j++ {
			bit, err := r.readBit()
			if err != nil {
				return err
			}
			b = b<<1 | bit
		}
		dst[i] = b
	}
	return nil
}
