// Package annotate draws detection boxes and labels onto images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"ecobot-service/internal/domain/detection"
)

var palette = []color.RGBA{
	{R: 0x04, G: 0x2A, B: 0xFF, A: 0xFF},
	{R: 0x0B, G: 0xDB, B: 0xEB, A: 0xFF},
	{R: 0xF3, G: 0xF3, B: 0xF3, A: 0xFF},
	{R: 0x00, G: 0xDF, B: 0xB7, A: 0xFF},
	{R: 0x11, G: 0x1F, B: 0x68, A: 0xFF},
	{R: 0xFF, G: 0x6F, B: 0xDD, A: 0xFF},
	{R: 0xFF, G: 0x44, B: 0x4F, A: 0xFF},
	{R: 0xCC, G: 0xED, B: 0x00, A: 0xFF},
	{R: 0x00, G: 0xF3, B: 0x44, A: 0xFF},
	{R: 0xBD, G: 0x00, B: 0xFF, A: 0xFF},
	{R: 0x00, G: 0xB4, B: 0xFF, A: 0xFF},
	{R: 0xDD, G: 0x00, B: 0xBA, A: 0xFF},
	{R: 0x00, G: 0xFF, B: 0xFF, A: 0xFF},
	{R: 0x26, G: 0xC0, B: 0x00, A: 0xFF},
	{R: 0x01, G: 0xFF, B: 0xB3, A: 0xFF},
	{R: 0x7D, G: 0x24, B: 0xFF, A: 0xFF},
	{R: 0x7B, G: 0x00, B: 0x68, A: 0xFF},
	{R: 0xFF, G: 0x1B, B: 0x6C, A: 0xFF},
	{R: 0xFC, G: 0x6D, B: 0x2F, A: 0xFF},
	{R: 0xA2, G: 0xFF, B: 0x0B, A: 0xFF},
}

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// ClassColor returns the stable palette color for a class id.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

type Annotator struct {
	LineWidth float64
	FontSize  float64
}

func New() *Annotator {
	return &Annotator{}
}

// Draw returns a copy of img with every detection outlined and labelled
// "<class> <confidence>". Widths scale with the image when left at zero.
func (a *Annotator) Draw(img image.Image, dets []detection.Detection) image.Image {
	dc := gg.NewContextForImage(img)
	if len(dets) == 0 {
		return dc.Image()
	}

	b := img.Bounds()
	lw := a.LineWidth
	if lw <= 0 {
		lw = math.Max(math.Round(float64(b.Dx()+b.Dy())/2*0.003), 2)
	}
	size := a.FontSize
	if size <= 0 {
		size = math.Max(lw*5, 12)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))

	for _, d := range dets {
		c := ClassColor(d.ClassID)
		rect := image.Rect(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
		drawRectangleEmpty(dc, rect, c, lw)
		drawLabel(dc, fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence), rect.Min, c, lw)
	}
	return dc.Image()
}

func drawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// drawLabel puts the text on a filled tab above p, or inside the box when
// there is no room above.
func drawLabel(dc *gg.Context, text string, p image.Point, c color.RGBA, pad float64) {
	tw, th := dc.MeasureString(text)
	x := float64(p.X)
	top := float64(p.Y) - th - 2*pad
	if top < 0 {
		top = float64(p.Y)
	}

	dc.SetColor(c)
	dc.DrawRectangle(x, top, tw+2*pad, th+2*pad)
	dc.Fill()

	dc.SetColor(textColor(c))
	dc.DrawString(text, x+pad, top+th+pad)
}

func textColor(bg color.RGBA) color.Color {
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.Black
	}
	return color.White
}
