package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecobot-service/internal/domain/detection"
)

func TestFormat_Empty(t *testing.T) {
	dets, avg, err := Format(nil, map[int]string{0: "can"})
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
	assert.Equal(t, 0.0, avg)
}

func TestFormat_PreservesOrder(t *testing.T) {
	raw := []detection.RawBox{
		{ClassID: 0, Confidence: 0.8, XYXY: [4]float64{1, 2, 3, 4}},
		{ClassID: 1, Confidence: 0.6, XYXY: [4]float64{5, 6, 7, 8}},
	}
	dets, avg, err := Format(raw, map[int]string{0: "can", 1: "bottle"})
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, detection.Detection{ClassID: 0, ClassName: "can", Confidence: 0.8, BBox: detection.BBox{1, 2, 3, 4}}, dets[0])
	assert.Equal(t, detection.Detection{ClassID: 1, ClassName: "bottle", Confidence: 0.6, BBox: detection.BBox{5, 6, 7, 8}}, dets[1])
	assert.InDelta(t, 0.7, avg, 1e-12)
}

func TestFormat_TruncatesCoordinates(t *testing.T) {
	raw := []detection.RawBox{{ClassID: 2, Confidence: 0.5, XYXY: [4]float64{10.9, 20.1, 30.5, 40.999}}}
	dets, _, err := Format(raw, map[int]string{2: "net"})
	require.NoError(t, err)
	assert.Equal(t, detection.BBox{10, 20, 30, 40}, dets[0].BBox)
}

func TestFormat_UnknownClass(t *testing.T) {
	raw := []detection.RawBox{{ClassID: 7, Confidence: 0.9}}
	_, _, err := Format(raw, map[int]string{0: "can"})
	require.ErrorIs(t, err, ErrUnknownClass)
}

func TestPlasticLevel(t *testing.T) {
	assert.Equal(t, detection.PlasticLevelLow, PlasticLevel(0))
	assert.Equal(t, detection.PlasticLevelLow, PlasticLevel(1))
	assert.Equal(t, detection.PlasticLevelMedium, PlasticLevel(2))
	assert.Equal(t, detection.PlasticLevelMedium, PlasticLevel(4))
	assert.Equal(t, detection.PlasticLevelHigh, PlasticLevel(5))
}
