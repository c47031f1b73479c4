package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"

	"ecobot-service/internal/domain/detection"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x04, G: 0x2A, B: 0xFF, A: 255}, ClassColor(0))
	assert.Equal(t, ClassColor(1), ClassColor(1+len(palette)))
	assert.Equal(t, ClassColor(3), ClassColor(-3))
	assert.Equal(t, color.RGBA{R: 0xA2, G: 0xFF, B: 0x0B, A: 255}, ClassColor(19))
	for i := range palette {
		assert.Equal(t, uint8(255), ClassColor(i).A)
	}
}

func TestDraw_OutlinesBox(t *testing.T) {
	src := whiteImage(200, 200)
	dets := []detection.Detection{
		{ClassID: 0, ClassName: "bottle", Confidence: 0.91, BBox: detection.BBox{50, 80, 150, 180}},
	}

	out := New().Draw(src, dets)

	assert.Equal(t, src.Bounds(), out.Bounds())
	r, g, b, _ := out.At(100, 180).RGBA()
	assert.NotEqual(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "bottom edge should be drawn")

	r, g, b, _ = out.At(100, 130).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "box interior stays untouched")

	r, g, b, _ = src.At(100, 180).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "source image must not be modified")
}

func TestDraw_NoDetections(t *testing.T) {
	src := whiteImage(10, 10)
	out := New().Draw(src, nil)
	assert.Equal(t, src.Bounds(), out.Bounds())
}
