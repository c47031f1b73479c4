// Package exifgps reads the GPS block of an image's EXIF metadata and turns
// its degree/minute/second rationals into signed decimal degrees.
package exifgps

import (
	"errors"
	"fmt"
	"strings"

	"ecobot-service/internal/domain/detection"
)

// GPS IFD tag ids.
const (
	TagLatitudeRef  uint16 = 1
	TagLatitude     uint16 = 2
	TagLongitudeRef uint16 = 3
	TagLongitude    uint16 = 4
)

var (
	ErrNoGPS           = errors.New("no gps data")
	ErrMalformed       = errors.New("malformed gps value")
	ErrZeroDenominator = errors.New("rational has zero denominator")
)

type Rational struct {
	Num int64
	Den int64
}

// Value is one GPS tag value: hemisphere refs carry Text, coordinates carry
// Rationals.
type Value struct {
	Text      string
	Rationals []Rational
}

// Block is the GPS IFD keyed by tag id.
type Block map[uint16]Value

// FromBlock converts a GPS block into coordinates. Longitude is only looked at
// once latitude has been read, and a missing longitude discards the latitude
// too: the result is both axes or nothing.
func FromBlock(b Block) (*detection.GPSCoordinates, error) {
	latValue, ok := b[TagLatitude]
	if !ok {
		return nil, ErrNoGPS
	}
	lat, err := ToDecimal(latValue.Rationals)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if ref(b, TagLatitudeRef, "N") == "S" {
		lat = -lat
	}

	lonValue, ok := b[TagLongitude]
	if !ok {
		return nil, fmt.Errorf("%w: latitude without longitude", ErrMalformed)
	}
	lon, err := ToDecimal(lonValue.Rationals)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if ref(b, TagLongitudeRef, "E") == "W" {
		lon = -lon
	}

	return &detection.GPSCoordinates{Latitude: lat, Longitude: lon}, nil
}

// ToDecimal returns deg + min/60 + sec/3600 for a D/M/S triple.
func ToDecimal(dms []Rational) (float64, error) {
	if len(dms) < 3 {
		return 0, fmt.Errorf("%w: want 3 rationals, got %d", ErrMalformed, len(dms))
	}
	for _, r := range dms[:3] {
		if r.Den == 0 {
			return 0, ErrZeroDenominator
		}
	}
	return float64(dms[0].Num)/float64(dms[0].Den) +
		float64(dms[1].Num)/float64(dms[1].Den)/60 +
		float64(dms[2].Num)/float64(dms[2].Den)/3600, nil
}

func ref(b Block, tag uint16, fallback string) string {
	v, ok := b[tag]
	if !ok {
		return fallback
	}
	return strings.TrimRight(v.Text, "\x00 ")
}
