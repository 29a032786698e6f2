package codec

import (
	"image"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// BannerRows is the height of the decorative header region in pixels.
	// It is part of the shared offset convention: steganographic decoding
	// skips exactly this many rows, so the value must never change for
	// images that are already in circulation.
	BannerRows = 28

	// BannerTitle is the fixed title rendered above exported images.
	BannerTitle = "CATEGORY TALLY"

	// bannerMinWidth keeps the title and date legible on small carriers.
	bannerMinWidth = 180
)

// drawBanner renders the title and export date into the top rows of img.
// Only pixels above the header boundary are touched.
func drawBanner(img *image.NRGBA, title string, date time.Time, rows int) {
	if rows <= 0 {
		return
	}
	b := img.Bounds()
	header := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+rows)
	draw.Draw(img, header, image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X+4, b.Min.Y+12),
	}
	d.DrawString(title)
	d.Dot = fixed.P(b.Min.X+4, b.Min.Y+25)
	d.DrawString(date.Format("2006-01-02"))
}

// compositeBanner places a functional image below a freshly drawn banner on
// a white canvas. Used for carriers whose geometry does not embed the
// header region itself (the QR symbol).
func compositeBanner(functional image.Image, title string, date time.Time) *image.NRGBA {
	fb := functional.Bounds()
	width := fb.Dx()
	if width < bannerMinWidth {
		width = bannerMinWidth
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, BannerRows+fb.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	drawBanner(canvas, title, date, BannerRows)

	offset := image.Pt((width-fb.Dx())/2, BannerRows)
	draw.Draw(canvas, image.Rectangle{Min: offset, Max: offset.Add(fb.Size())}, functional, fb.Min, draw.Src)
	return canvas
}
