// Package formatter turns raw model boxes into response detections.
package formatter

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"ecobot-service/internal/domain/detection"
)

var ErrUnknownClass = errors.New("class id missing from model class table")

// Format keeps model order, truncates box corners toward zero and resolves
// class names. The average confidence is 0 for an empty input.
func Format(raw []detection.RawBox, names map[int]string) ([]detection.Detection, float64, error) {
	out := make([]detection.Detection, 0, len(raw))
	for _, box := range raw {
		name, ok := names[box.ClassID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d", ErrUnknownClass, box.ClassID)
		}
		out = append(out, detection.Detection{
			ClassID:    box.ClassID,
			ClassName:  name,
			Confidence: box.Confidence,
			BBox: detection.BBox{
				int(box.XYXY[0]),
				int(box.XYXY[1]),
				int(box.XYXY[2]),
				int(box.XYXY[3]),
			},
		})
	}
	return out, AverageConfidence(out), nil
}

func AverageConfidence(dets []detection.Detection) float64 {
	if len(dets) == 0 {
		return 0
	}
	sum := lo.SumBy(dets, func(d detection.Detection) float64 { return d.Confidence })
	return sum / float64(len(dets))
}

// PlasticLevel buckets a detection count: 5 or more is high, 2 or more medium.
func PlasticLevel(count int) detection.PlasticLevel {
	switch {
	case count >= 5:
		return detection.PlasticLevelHigh
	case count >= 2:
		return detection.PlasticLevelMedium
	default:
		return detection.PlasticLevelLow
	}
}
