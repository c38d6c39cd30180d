package bivcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the fixed wire length of every record.
const RecordSize = 8

const (
	recordTypeImage = 0
	recordTypeSync  = 1
)

// ErrShortRecord is returned by DeserializeRecord when fewer than
// RecordSize bytes are available.
var ErrShortRecord = errors.New("bivcodec: short record")

// ErrMalformedRecord is returned by DeserializeRecord when the bytes do
// not decode to a known record (an unrecognized type byte, or an Image
// record whose layer exceeds MaxLayer).
var ErrMalformedRecord = errors.New("bivcodec: malformed record")

// ImageRecord carries the summary values for the two children of the
// node at (Layer, Path).
type ImageRecord struct {
	Layer   uint8
	Path    uint32 // fused path, bit i = path[i]; only the low 24 bits are meaningful
	Channel uint8
	ValueL  uint8
	ValueR  uint8
}

// SyncRecord carries canvas metadata.
//
// Width and Timestamp are truncated to 16 bits on the wire. This is a
// latent limitation kept for wire compatibility — a v2 format would
// widen both fields instead of wrapping silently past 65535.
type SyncRecord struct {
	Width       uint16
	Ratio       float64 // reconstructed from the wire's ratio*128 fixed-point byte
	ColorFormat ColorSpace
	ID          uint8
	Timestamp   uint16
}

// Record is the tagged variant discriminated by the wire's type byte.
// Exactly one of Sync/Image is meaningful, selected by IsSync.
type Record struct {
	IsSync bool
	Sync   SyncRecord
	Image  ImageRecord
}

// Serialize encodes r into exactly RecordSize bytes.
func (r Record) Serialize() [RecordSize]byte {
	var buf [RecordSize]byte
	if r.IsSync {
		buf[0] = recordTypeSync
		binary.LittleEndian.PutUint16(buf[1:3], r.Sync.Width)
		buf[3] = clampByte(r.Sync.Ratio * 128)
		buf[4] = byte(r.Sync.ColorFormat)
		buf[5] = r.Sync.ID
		binary.LittleEndian.PutUint16(buf[6:8], r.Sync.Timestamp)
		return buf
	}

	buf[0] = recordTypeImage
	buf[1] = r.Image.Layer
	putPath24(buf[2:5], r.Image.Path)
	buf[5] = r.Image.Channel
	buf[6] = r.Image.ValueL
	buf[7] = r.Image.ValueR
	return buf
}

// DeserializeRecord decodes a record from b. b must contain at least
// RecordSize bytes; bytes beyond RecordSize are ignored, which lets
// callers read a stream 8 bytes at a time without slicing exactly.
func DeserializeRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortRecord, len(b), RecordSize)
	}

	switch b[0] {
	case recordTypeSync:
		return Record{
			IsSync: true,
			Sync: SyncRecord{
				Width:       binary.LittleEndian.Uint16(b[1:3]),
				Ratio:       float64(b[3]) / 128,
				ColorFormat: ColorSpace(b[4]),
				ID:          b[5],
				Timestamp:   binary.LittleEndian.Uint16(b[6:8]),
			},
		}, nil
	case recordTypeImage:
		if int(b[1]) > MaxLayer {
			return Record{}, fmt.Errorf("%w: image layer %d exceeds max layer %d", ErrMalformedRecord, b[1], MaxLayer)
		}
		return Record{
			Image: ImageRecord{
				Layer:   b[1],
				Path:    getPath24(b[2:5]),
				Channel: b[5],
				ValueL:  b[6],
				ValueR:  b[7],
			},
		}, nil
	default:
		return Record{}, fmt.Errorf("%w: type byte 0x%02x", ErrMalformedRecord, b[0])
	}
}

func putPath24(dst []byte, path uint32) {
	dst[0] = byte(path)
	dst[1] = byte(path >> 8)
	dst[2] = byte(path >> 16)
}

func getPath24(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}

// clampByte clamps v into the range of an unsigned byte and truncates
// the fractional part (matching the reference's cast-based narrowing
// rather than rounding to nearest).
func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
