package codec

import (
	"bytes"
	"errors"
	"image"
	"math/rand"
	"testing"
	"time"
)

func TestStegoBitExact(t *testing.T) {
	// The canonical bit patterns: all clear, all set, alternating both ways.
	payload := []byte{0x00, 0xff, 0x55, 0xaa}

	s := Stego{Header: 0, MaxPixels: 64}
	img, err := s.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := s.Decode(img)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected % x, got % x", payload, got)
	}
}

func TestStegoRoundTripSizes(t *testing.T) {
	s := Stego{Header: 0}
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{0, 1, 2, 31, 32, 33, 1000, 10000} {
		payload := make([]byte, n)
		rng.Read(payload)

		img, err := s.Encode(payload)
		if err != nil {
			t.Fatalf("size %d: encode: %v", n, err)
		}
		got, err := s.Decode(img)
		if err != nil {
			t.Fatalf("size %d: decode: %v", n, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("size %d: round-trip mismatch", n)
		}
	}
}

func TestStegoHeaderExclusion(t *testing.T) {
	payload := []byte("payload below the banner")
	s := Stego{Header: BannerRows}

	img, err := s.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	nrgba := img.(*image.NRGBA)

	// Scribble over the entire header region, the way the banner renderer
	// does. Payload recovery must not be affected.
	drawBanner(nrgba, BannerTitle, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), BannerRows)
	for x := 0; x < nrgba.Bounds().Dx(); x++ {
		for ch := 0; ch < 4; ch++ {
			nrgba.Pix[nrgba.PixOffset(x, 0)+ch] = byte(x * ch)
		}
	}

	got, err := s.Decode(nrgba)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestStegoTrailingPixelsIgnored(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	s := Stego{Header: 0}

	img, err := s.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	nrgba := img.(*image.NRGBA)

	// Corrupt every LSB beyond the embedded region. Decoding reads only
	// the declared length, so this must be invisible.
	usedBits := (LengthPrefixBytes + len(payload)) * 8
	bit := 0
	for y := 0; y < nrgba.Bounds().Dy(); y++ {
		for x := 0; x < nrgba.Bounds().Dx(); x++ {
			off := nrgba.PixOffset(x, y)
			for ch := 0; ch < StegoChannelsPerPixel; ch++ {
				if bit >= usedBits {
					nrgba.Pix[off+ch] ^= 0x01
				}
				bit++
			}
		}
	}

	got, err := s.Decode(nrgba)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected % x, got % x", payload, got)
	}
}

func TestStegoDeclaredLengthBeyondCapacity(t *testing.T) {
	// A carrier whose length prefix claims more bytes than the grid holds.
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = 0xff // every embedded bit reads as 1
		img.Pix[i+1] = 0xff
		img.Pix[i+2] = 0xff
		img.Pix[i+3] = 0xff
	}

	s := Stego{Header: 0}
	if _, err := s.Decode(img); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestStegoCarrierTooSmallForPrefix(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	s := Stego{Header: 0}
	if _, err := s.Decode(img); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestStegoCapacityBoundary(t *testing.T) {
	s := Stego{Header: 0, MaxPixels: 64} // 64*3/8 - 4 = 20 bytes
	if got := s.MaxCapacity(); got != 20 {
		t.Fatalf("expected capacity 20, got %d", got)
	}

	exact := bytes.Repeat([]byte{0x5a}, 20)
	img, err := s.Encode(exact)
	if err != nil {
		t.Fatalf("payload at capacity should encode: %v", err)
	}
	got, err := s.Decode(img)
	if err != nil || !bytes.Equal(got, exact) {
		t.Fatalf("round-trip at capacity failed: %v", err)
	}

	if _, err := s.Encode(bytes.Repeat([]byte{0x5a}, 21)); !errors.Is(err, ErrDataTooLarge) {
		t.Fatalf("expected ErrDataTooLarge, got %v", err)
	}
}

func TestStegoCapacityFormula(t *testing.T) {
	cases := []struct {
		w, h, header, want int
	}{
		{0, 0, 0, 0},
		{8, 8, 0, 20},        // 64px * 3 bits / 8 - 4
		{8, 8, 8, 0},         // header swallows the whole grid
		{100, 100, 28, 2696}, // 7200px * 3 / 8 - 4
		{2, 2, 0, 0},         // 12 bits, below the prefix
	}
	for _, tc := range cases {
		if got := StegoCapacity(tc.w, tc.h, tc.header); got != tc.want {
			t.Fatalf("StegoCapacity(%d,%d,%d) = %d, want %d", tc.w, tc.h, tc.header, got, tc.want)
		}
	}
}
