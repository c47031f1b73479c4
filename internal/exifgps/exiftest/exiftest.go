// Package exiftest builds small JPEGs carrying a GPS EXIF block for tests.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
)

const (
	tiffByte     = 1
	tiffASCII    = 2
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5

	gpsIFDPointer = 0x8825
	orientation   = 0x0112
)

type Rational struct {
	Num uint32
	Den uint32
}

// DMS is a whole-number degree/minute/second triple.
func DMS(d, m, s uint32) []Rational {
	return []Rational{{d, 1}, {m, 1}, {s, 1}}
}

// Entry is one GPS IFD tag. Rats selects RATIONAL, otherwise Ref is stored as
// ASCII, or as BYTE when RefAsBytes is set.
type Entry struct {
	Tag        uint16
	Ref        string
	RefAsBytes bool
	Rats       []Rational
}

// TIFF writes a little-endian TIFF whose IFD0 points at a GPS IFD holding
// entries, or, when entries is nil, carries only an orientation tag.
func TIFF(entries []Entry) []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, le, v) }

	buf.WriteString("II")
	w(uint16(42))
	w(uint32(8))

	// IFD0: one entry, next-IFD offset 0.
	w(uint16(1))
	if entries == nil {
		w(uint16(orientation))
		w(uint16(tiffShort))
		w(uint32(1))
		w(uint16(1))
		w(uint16(0))
		w(uint32(0))
		return buf.Bytes()
	}
	const gpsOffset = 8 + 2 + 12 + 4
	w(uint16(gpsIFDPointer))
	w(uint16(tiffLong))
	w(uint32(1))
	w(uint32(gpsOffset))
	w(uint32(0))

	dataOffset := uint32(gpsOffset + 2 + 12*len(entries) + 4)
	var data bytes.Buffer
	w(uint16(len(entries)))
	for _, e := range entries {
		w(e.Tag)
		if e.Rats == nil {
			val := make([]byte, 4)
			copy(val, e.Ref)
			if e.RefAsBytes {
				w(uint16(tiffByte))
				w(uint32(len(e.Ref)))
			} else {
				w(uint16(tiffASCII))
				w(uint32(len(e.Ref) + 1))
			}
			buf.Write(val)
			continue
		}
		w(uint16(tiffRational))
		w(uint32(len(e.Rats)))
		w(dataOffset + uint32(data.Len()))
		for _, r := range e.Rats {
			_ = binary.Write(&data, le, r.Num)
			_ = binary.Write(&data, le, r.Den)
		}
	}
	w(uint32(0))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// JPEG encodes a small image and splices an APP1 Exif segment holding
// tiffData right after the SOI marker. A nil tiffData leaves it out.
func JPEG(tiffData []byte) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, nil); err != nil {
		panic(err)
	}
	raw := enc.Bytes()

	var out bytes.Buffer
	out.Write(raw[:2])
	if tiffData != nil {
		payload := append([]byte("Exif\x00\x00"), tiffData...)
		out.Write([]byte{0xFF, 0xE1})
		_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
		out.Write(payload)
	}
	out.Write(raw[2:])
	return out.Bytes()
}
