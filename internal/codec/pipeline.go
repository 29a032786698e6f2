package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"time"

	"tally/internal/core"
)

// Strategy is a carrier encoding: it knows its payload budget and how to
// turn payload bytes into a functional image.
type Strategy interface {
	Name() string
	MaxCapacity() int
	Encode(payload []byte) (image.Image, error)
}

// ImageDecoder is the optional capability of strategies whose payload is
// recoverable from pixel data alone. The QR strategy does not implement it;
// its decode path starts from scanner output (DecodeScanned).
type ImageDecoder interface {
	Decode(img image.Image) ([]byte, error)
}

// inlineHeader marks strategies that reserve the banner region inside the
// image they encode, as opposed to having it composited around them.
type inlineHeader interface {
	HeaderRows() int
}

// Pipeline orchestrates the export and import chains. Both directions are
// synchronous single-shot operations; every failure is a typed codec error
// and no partial state survives an error.
type Pipeline struct {
	Stego Stego
	QR    QR

	// MaxDecodedBytes caps decompression on all import paths.
	MaxDecodedBytes int

	Title string
	Now   func() time.Time // banner date source, nil means time.Now
}

// NewPipeline returns a pipeline with the default strategies and limits.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Stego:           DefaultStego(),
		QR:              DefaultQR(),
		MaxDecodedBytes: DefaultMaxDecodedBytes,
		Title:           BannerTitle,
	}
}

// Strategy resolves a strategy by name. The stego strategy is the default
// for an empty name.
func (p *Pipeline) Strategy(name string) (Strategy, error) {
	switch name {
	case "qr":
		return p.QR, nil
	case "stego", "":
		return p.Stego, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidData, name)
	}
}

// ExportImage runs the full export chain for one strategy:
// serialize -> compress -> capacity check -> encode -> banner -> PNG bytes.
//
// The capacity check runs after compression, because compression changes
// the size that matters, and fails fast with ErrDataTooLarge before any
// image work happens.
func (p *Pipeline) ExportImage(d core.Dataset, s Strategy) ([]byte, error) {
	raw, err := Marshal(d)
	if err != nil {
		return nil, err
	}
	payload, err := Compress(raw)
	if err != nil {
		return nil, err
	}
	if len(payload) > s.MaxCapacity() {
		return nil, fmt.Errorf("%w: compressed payload is %d bytes, %s carrier holds at most %d",
			ErrDataTooLarge, len(payload), s.Name(), s.MaxCapacity())
	}

	img, err := s.Encode(payload)
	if err != nil {
		return nil, err
	}

	final := p.frame(img, s)

	var buf bytes.Buffer
	if err := png.Encode(&buf, final); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrImageGenerationFailed, err)
	}
	return buf.Bytes(), nil
}

// frame draws the decorative banner: in place for strategies that reserve
// header rows, on an extended canvas otherwise.
func (p *Pipeline) frame(img image.Image, s Strategy) image.Image {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	title := p.Title
	if title == "" {
		title = BannerTitle
	}

	if h, ok := s.(inlineHeader); ok && h.HeaderRows() > 0 {
		nrgba, isNRGBA := img.(*image.NRGBA)
		if !isNRGBA {
			// Exact 8-bit copy; payload bits are value-preserved.
			nrgba = image.NewNRGBA(img.Bounds())
			draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)
		}
		drawBanner(nrgba, title, now(), h.HeaderRows())
		return nrgba
	}
	return compositeBanner(img, title, now())
}

// ImportImage runs the inverse chain on a steganographic carrier:
// PNG decode -> bit extraction (banner rows skipped) -> decompress ->
// deserialize.
func (p *Pipeline) ImportImage(data []byte) (core.Dataset, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: png decode: %v", ErrInvalidData, err)
	}

	var dec ImageDecoder
	for _, s := range []Strategy{p.Stego, p.QR} {
		if d, ok := s.(ImageDecoder); ok {
			dec = d
			break
		}
	}
	if dec == nil {
		return nil, fmt.Errorf("%w: no strategy decodes pixel data", ErrInvalidData)
	}

	payload, err := dec.Decode(img)
	if err != nil {
		return nil, err
	}
	raw, err := Decompress(payload, p.MaxDecodedBytes)
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}

// ImportScanned runs the inverse chain on raw QR scanner output:
// base64 decode -> decompress -> deserialize.
func (p *Pipeline) ImportScanned(raw []byte) (core.Dataset, error) {
	payload, err := DecodeScanned(raw)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(payload, p.MaxDecodedBytes)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// ExportText is the degraded-but-simpler interchange path: pretty-printed
// JSON, no compression or carrier.
func (p *Pipeline) ExportText(d core.Dataset) ([]byte, error) {
	return MarshalIndent(d)
}

// ImportText parses the plain JSON interchange form.
func (p *Pipeline) ImportText(data []byte) (core.Dataset, error) {
	return Unmarshal(data)
}
