// Package yolo holds the pre and post processing around a YOLOv8-style
// detection head: letterboxing, output decoding and class-aware NMS.
package yolo

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"ecobot-service/internal/domain/detection"
)

const (
	DefaultConfThreshold = 0.25
	DefaultIOUThreshold  = 0.7
	MaxDetections        = 300
)

var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox maps between source image pixels and the square-padded model
// input.
type Letterbox struct {
	Scale      float64
	PadX, PadY float64
	SrcW, SrcH int
	DstW, DstH int
}

func NewLetterbox(srcW, srcH, dstW, dstH int) Letterbox {
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	newW := int(math.Round(float64(srcW) * scale))
	newH := int(math.Round(float64(srcH) * scale))
	return Letterbox{
		Scale: scale,
		PadX:  float64(dstW-newW) / 2,
		PadY:  float64(dstH-newH) / 2,
		SrcW:  srcW,
		SrcH:  srcH,
		DstW:  dstW,
		DstH:  dstH,
	}
}

// Apply resizes img into a DstW x DstH canvas padded with gray.
func (l Letterbox) Apply(img image.Image) *image.NRGBA {
	newW := int(math.Round(float64(l.SrcW) * l.Scale))
	newH := int(math.Round(float64(l.SrcH) * l.Scale))
	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(l.DstW, l.DstH, padColor)
	return imaging.Paste(canvas, resized, image.Pt(int(l.PadX), int(l.PadY)))
}

// Unmap converts a box from model input space back to source pixels,
// clipped to the source image.
func (l Letterbox) Unmap(b detection.RawBox) detection.RawBox {
	out := b
	out.XYXY[0] = clamp((b.XYXY[0]-l.PadX)/l.Scale, float64(l.SrcW))
	out.XYXY[1] = clamp((b.XYXY[1]-l.PadY)/l.Scale, float64(l.SrcH))
	out.XYXY[2] = clamp((b.XYXY[2]-l.PadX)/l.Scale, float64(l.SrcW))
	out.XYXY[3] = clamp((b.XYXY[3]-l.PadY)/l.Scale, float64(l.SrcH))
	return out
}

// FillTensor writes img as normalized RGB floats in HWC order.
func FillTensor(dst []float32, img *image.NRGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx() && i+2 < len(dst); x++ {
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255
			dst[i+1] = float32(p[1]) / 255
			dst[i+2] = float32(p[2]) / 255
			i += 3
		}
	}
}

// Output describes a raw detection head tensor of 4+classes rows by anchors
// columns, or the transpose.
type Output struct {
	Data       []float32
	Channels   int
	Anchors    int
	Transposed bool
	// Normalized marks xywh given as fractions of the input size.
	Normalized bool
}

func (o Output) at(channel, anchor int) float32 {
	if o.Transposed {
		return o.Data[anchor*o.Channels+channel]
	}
	return o.Data[channel*o.Anchors+anchor]
}

// Decode picks the best class per anchor and keeps anchors above conf. Boxes
// come back as xyxy in model input pixels.
func Decode(o Output, inputW, inputH int, conf float64) []detection.RawBox {
	numClasses := o.Channels - 4
	if numClasses <= 0 || len(o.Data) < o.Channels*o.Anchors {
		return nil
	}
	sx, sy := 1.0, 1.0
	if o.Normalized {
		sx, sy = float64(inputW), float64(inputH)
	}

	var boxes []detection.RawBox
	for a := 0; a < o.Anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := o.at(4+c, a); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < conf {
			continue
		}
		cx := float64(o.at(0, a)) * sx
		cy := float64(o.at(1, a)) * sy
		w := float64(o.at(2, a)) * sx
		h := float64(o.at(3, a)) * sy
		boxes = append(boxes, detection.RawBox{
			ClassID:    best,
			Confidence: float64(bestScore),
			XYXY:       [4]float64{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
		})
	}
	return boxes
}

// NMS keeps the highest scoring boxes, suppressing same-class overlaps above
// iou. Output is sorted by confidence, highest first.
func NMS(boxes []detection.RawBox, iou float64, limit int) []detection.RawBox {
	sorted := make([]detection.RawBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]detection.RawBox, 0, len(sorted))
	for _, b := range sorted {
		if limit > 0 && len(kept) >= limit {
			break
		}
		suppressed := false
		for _, k := range kept {
			if k.ClassID == b.ClassID && IoU(k.XYXY, b.XYXY) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

func IoU(a, b [4]float64) float64 {
	ix := math.Max(0, math.Min(a[2], b[2])-math.Max(a[0], b[0]))
	iy := math.Max(0, math.Min(a[3], b[3])-math.Max(a[1], b[1]))
	inter := ix * iy
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b [4]float64) float64 {
	return math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])
}

func clamp(v, hi float64) float64 {
	return math.Max(0, math.Min(v, hi))
}
