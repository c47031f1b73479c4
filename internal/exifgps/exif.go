package exifgps

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"ecobot-service/internal/domain/detection"
)

var gpsFields = map[uint16]exif.FieldName{
	TagLatitudeRef:  exif.GPSLatitudeRef,
	TagLatitude:     exif.GPSLatitude,
	TagLongitudeRef: exif.GPSLongitudeRef,
	TagLongitude:    exif.GPSLongitude,
}

// Extract returns the coordinates embedded in an encoded image, or nil when
// there are none or they cannot be read.
func Extract(r io.Reader) *detection.GPSCoordinates {
	coords, err := Parse(r)
	if err != nil {
		return nil
	}
	return coords
}

// ExtractBytes is Extract over an in-memory image.
func ExtractBytes(data []byte) *detection.GPSCoordinates {
	return Extract(bytes.NewReader(data))
}

// Parse is Extract with the reason for a missing result.
func Parse(r io.Reader) (*detection.GPSCoordinates, error) {
	block, err := Read(r)
	if err != nil {
		return nil, err
	}
	return FromBlock(block)
}

// Read decodes EXIF metadata and collects the GPS tags into a Block.
func Read(r io.Reader) (block Block, err error) {
	defer func() {
		if p := recover(); p != nil {
			block, err = nil, fmt.Errorf("%w: exif decoder panic: %v", ErrMalformed, p)
		}
	}()

	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("%w: %v", ErrNoGPS, err)
	}
	if _, err := x.Get(exif.GPSInfoIFDPointer); err != nil {
		return nil, ErrNoGPS
	}

	block = make(Block, len(gpsFields))
	for id, name := range gpsFields {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		v, err := valueOf(tag)
		if err != nil {
			// Refs only pick the sign; an unreadable one falls back to N/E.
			if id == TagLatitudeRef || id == TagLongitudeRef {
				continue
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		block[id] = v
	}
	return block, nil
}

func valueOf(tag *tiff.Tag) (Value, error) {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Value{Text: s}, nil
	case tiff.RatVal:
		rats := make([]Rational, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			rats = append(rats, Rational{Num: num, Den: den})
		}
		return Value{Rationals: rats}, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected tag format %v", ErrMalformed, tag.Format())
	}
}
