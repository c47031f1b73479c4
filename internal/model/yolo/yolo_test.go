package yolo

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecobot-service/internal/domain/detection"
)

func TestLetterbox_RoundTrip(t *testing.T) {
	lb := NewLetterbox(1280, 640, 640, 640)
	assert.Equal(t, 0.5, lb.Scale)
	assert.Equal(t, 0.0, lb.PadX)
	assert.Equal(t, 160.0, lb.PadY)

	// A box covering the middle of the padded input.
	in := detection.RawBox{ClassID: 1, Confidence: 0.9, XYXY: [4]float64{100, 200, 300, 400}}
	out := lb.Unmap(in)
	assert.Equal(t, [4]float64{200, 80, 600, 480}, out.XYXY)
	assert.Equal(t, 1, out.ClassID)

	// Anything in the padding is clipped to the image.
	out = lb.Unmap(detection.RawBox{XYXY: [4]float64{-10, 0, 700, 640}})
	assert.Equal(t, [4]float64{0, 0, 1280, 640}, out.XYXY)
}

func TestLetterbox_Apply(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	lb := NewLetterbox(40, 20, 32, 32)
	dst := lb.Apply(src)
	require.Equal(t, image.Rect(0, 0, 32, 32), dst.Bounds())

	assert.Equal(t, padColor, dst.NRGBAAt(16, 0), "top band is padding")
	assert.Equal(t, uint8(255), dst.NRGBAAt(16, 16).R, "centre holds the image")

	tensor := make([]float32, 32*32*3)
	FillTensor(tensor, dst)
	centre := (16*32 + 16) * 3
	assert.InDelta(t, 1.0, tensor[centre], 1e-6)
	assert.InDelta(t, 114.0/255, tensor[0], 1e-6)
}

func TestDecode(t *testing.T) {
	// 2 classes, 3 anchors, channel-major.
	data := []float32{
		// cx
		50, 200, 10,
		// cy
		50, 200, 10,
		// w
		20, 40, 4,
		// h
		10, 40, 4,
		// class 0
		0.9, 0.1, 0.05,
		// class 1
		0.2, 0.6, 0.1,
	}
	boxes := Decode(Output{Data: data, Channels: 6, Anchors: 3}, 640, 640, 0.25)
	require.Len(t, boxes, 2)
	assert.Equal(t, 0, boxes[0].ClassID)
	assert.InDelta(t, 0.9, boxes[0].Confidence, 1e-6)
	assert.Equal(t, [4]float64{40, 45, 60, 55}, boxes[0].XYXY)
	assert.Equal(t, 1, boxes[1].ClassID)
	assert.Equal(t, [4]float64{180, 180, 220, 220}, boxes[1].XYXY)
}

func TestDecode_TransposedNormalized(t *testing.T) {
	data := []float32{
		0.5, 0.5, 0.25, 0.25, 0.1, 0.8,
	}
	boxes := Decode(Output{Data: data, Channels: 6, Anchors: 1, Transposed: true, Normalized: true}, 640, 320, 0.25)
	require.Len(t, boxes, 1)
	assert.Equal(t, 1, boxes[0].ClassID)
	assert.Equal(t, [4]float64{240, 120, 400, 200}, boxes[0].XYXY)
}

func TestNMS(t *testing.T) {
	boxes := []detection.RawBox{
		{ClassID: 0, Confidence: 0.6, XYXY: [4]float64{0, 0, 10, 10}},
		{ClassID: 0, Confidence: 0.9, XYXY: [4]float64{1, 1, 11, 11}},
		{ClassID: 1, Confidence: 0.7, XYXY: [4]float64{1, 1, 11, 11}},
		{ClassID: 0, Confidence: 0.5, XYXY: [4]float64{50, 50, 60, 60}},
	}
	kept := NMS(boxes, 0.5, 0)
	require.Len(t, kept, 3)
	assert.Equal(t, 0.9, kept[0].Confidence)
	assert.Equal(t, 0.7, kept[1].Confidence, "other class is not suppressed")
	assert.Equal(t, 0.5, kept[2].Confidence)

	assert.Len(t, NMS(boxes, 0.5, 1), 1)
}

func TestIoU(t *testing.T) {
	assert.Equal(t, 1.0, IoU([4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}))
	assert.Equal(t, 0.0, IoU([4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}))
	assert.InDelta(t, 25.0/175.0, IoU([4]float64{0, 0, 10, 10}, [4]float64{5, 5, 15, 15}), 1e-12)
}
