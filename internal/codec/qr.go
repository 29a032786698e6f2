package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRScale is the integer upscale factor (pixels per module) used
// when rasterizing symbols. Scanners want modules larger than one pixel.
const DefaultQRScale = 4

// QR renders the payload as a scannable QR symbol. The payload is base64
// encoded before being handed to the QR engine so the symbol content is
// plain text for any scanner.
//
// Scanning is an external collaborator: decoding starts from the raw bytes
// a scanner recovered from the symbol, see DecodeScanned.
type QR struct {
	Capacity int // compressed payload budget in bytes
	Scale    int // pixels per module
}

// DefaultQR returns the strategy with the configured symbol capacity
// constant and the default rasterization scale.
func DefaultQR() QR {
	return QR{Capacity: QRCapacityBytes, Scale: DefaultQRScale}
}

func (q QR) Name() string { return "qr" }

func (q QR) MaxCapacity() int {
	if q.Capacity <= 0 {
		return QRCapacityBytes
	}
	return q.Capacity
}

// Encode builds the QR symbol at the highest error-correction level and
// rasterizes it at a fixed integer scale.
func (q QR) Encode(payload []byte) (image.Image, error) {
	text := base64.StdEncoding.EncodeToString(payload)

	code, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}

	scale := q.Scale
	if scale <= 0 {
		scale = DefaultQRScale
	}
	// A negative size renders |size| pixels per module.
	return code.Image(-scale), nil
}

// DecodeScanned recovers the compressed payload from the raw bytes a QR
// scanner produced: the base64 text content of the symbol.
func DecodeScanned(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	payload := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(payload, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidData, err)
	}
	return payload[:n], nil
}
