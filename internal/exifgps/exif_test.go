package exifgps

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecobot-service/internal/exifgps/exiftest"
)

func TestExtract_SouthWest(t *testing.T) {
	data := exiftest.JPEG(exiftest.TIFF([]exiftest.Entry{
		{Tag: TagLatitudeRef, Ref: "S"},
		{Tag: TagLatitude, Rats: exiftest.DMS(33, 51, 54)},
		{Tag: TagLongitudeRef, Ref: "W"},
		{Tag: TagLongitude, Rats: exiftest.DMS(70, 30, 0)},
	}))

	got := ExtractBytes(data)
	require.NotNil(t, got)
	assert.InDelta(t, -33.865, got.Latitude, 1e-9)
	assert.InDelta(t, -70.5, got.Longitude, 1e-9)

	_, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err, "image must stay decodable after splicing exif")
}

func TestExtract_NorthEast(t *testing.T) {
	data := exiftest.JPEG(exiftest.TIFF([]exiftest.Entry{
		{Tag: TagLatitudeRef, Ref: "N"},
		{Tag: TagLatitude, Rats: []exiftest.Rational{{Num: 10, Den: 1}, {Num: 30, Den: 1}, {Num: 0, Den: 1}}},
		{Tag: TagLongitudeRef, Ref: "E"},
		{Tag: TagLongitude, Rats: exiftest.DMS(5, 0, 0)},
	}))

	got := ExtractBytes(data)
	require.NotNil(t, got)
	assert.Equal(t, 10.5, got.Latitude)
	assert.Equal(t, 5.0, got.Longitude)
}

func TestExtract_NonTextRefsFallBackToDefaults(t *testing.T) {
	data := exiftest.JPEG(exiftest.TIFF([]exiftest.Entry{
		{Tag: TagLatitudeRef, Ref: "S", RefAsBytes: true},
		{Tag: TagLatitude, Rats: exiftest.DMS(10, 30, 0)},
		{Tag: TagLongitudeRef, Ref: "W", RefAsBytes: true},
		{Tag: TagLongitude, Rats: exiftest.DMS(20, 15, 0)},
	}))

	got := ExtractBytes(data)
	require.NotNil(t, got)
	assert.Equal(t, 10.5, got.Latitude)
	assert.Equal(t, 20.25, got.Longitude)
}

func TestExtract_Absent(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no metadata", exiftest.JPEG(nil)},
		{"no GPSInfo", exiftest.JPEG(exiftest.TIFF(nil))},
		{"latitude only", exiftest.JPEG(exiftest.TIFF([]exiftest.Entry{
			{Tag: TagLatitudeRef, Ref: "N"},
			{Tag: TagLatitude, Rats: exiftest.DMS(10, 30, 0)},
		}))},
		{"zero denominator", exiftest.JPEG(exiftest.TIFF([]exiftest.Entry{
			{Tag: TagLatitude, Rats: []exiftest.Rational{{Num: 10, Den: 0}, {Num: 30, Den: 1}, {Num: 0, Den: 1}}},
			{Tag: TagLongitude, Rats: exiftest.DMS(5, 0, 0)},
		}))},
		{"not an image", []byte("definitely not a jpeg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ExtractBytes(tt.data))
		})
	}
}
