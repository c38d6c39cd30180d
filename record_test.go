package bivcodec

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestRecord_SerializeLength(t *testing.T) {
	rec := Record{Image: ImageRecord{Layer: 3, Path: 5, Channel: 0, ValueL: 10, ValueR: 20}}
	buf := rec.Serialize()
	if len(buf) != RecordSize {
		t.Fatalf("len(Serialize()) = %d, want %d", len(buf), RecordSize)
	}
}

// Serialize/deserialize round-trips up to byte quantization.
func TestRecord_Property_RoundTrip(t *testing.T) {
	tests := []Record{
		{Image: ImageRecord{Layer: 0, Path: 0, Channel: 0, ValueL: 0, ValueR: 255}},
		{Image: ImageRecord{Layer: 24, Path: 0xFFFFFF, Channel: 7, ValueL: 128, ValueR: 1}},
		{IsSync: true, Sync: SyncRecord{Width: 1920, Ratio: 0.5, ColorFormat: ColorSpaceHSL, ID: 255, Timestamp: 4000}},
		{IsSync: true, Sync: SyncRecord{Width: 0, Ratio: 0, ColorFormat: ColorSpaceGrayscale, ID: 0, Timestamp: 0}},
	}

	for _, want := range tests {
		buf := want.Serialize()
		got, err := DeserializeRecord(buf[:])
		if err != nil {
			t.Fatalf("DeserializeRecord: %v", err)
		}

		if got.Serialize() != want.Serialize() {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestRecord_Deserialize_ShortInput(t *testing.T) {
	_, err := DeserializeRecord([]byte{0, 1, 2})
	if !errors.Is(err, ErrShortRecord) {
		t.Errorf("err = %v, want wrapping ErrShortRecord", err)
	}
}

func TestRecord_Deserialize_UnknownType(t *testing.T) {
	_, err := DeserializeRecord([]byte{0xAB, 0, 0, 0, 0, 0, 0, 0})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want wrapping ErrMalformedRecord", err)
	}
}

func TestRecord_SyncFields(t *testing.T) {
	rec := Record{IsSync: true, Sync: SyncRecord{
		Width: 640, Ratio: 0.75, ColorFormat: ColorSpaceRGB, ID: 0xFF, Timestamp: 12345,
	}}
	buf := rec.Serialize()

	if buf[0] != 1 {
		t.Errorf("type byte = %d, want 1", buf[0])
	}
	if buf[4] != byte(ColorSpaceRGB) {
		t.Errorf("color_format byte = %d, want %d", buf[4], ColorSpaceRGB)
	}

	got, err := DeserializeRecord(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if got.Sync.Width != 640 {
		t.Errorf("Width = %d, want 640", got.Sync.Width)
	}
	if got.Sync.ColorFormat != ColorSpaceRGB {
		t.Errorf("ColorFormat = %v, want RGB", got.Sync.ColorFormat)
	}
}

// A chain of 1000 records round-trips through serialize/deserialize.
func TestRecord_BulkWireRoundTrip(t *testing.T) {
	re := rand.New(rand.NewSource(1))
	records := make([]Record, 1000)
	for i := range records {
		if i%97 == 0 {
			records[i] = Record{IsSync: true, Sync: SyncRecord{
				Width: uint16(re.Intn(4096)), Ratio: float64(re.Intn(128)) / 128,
				ColorFormat: ColorSpace(re.Intn(3)), ID: 0xFF, Timestamp: uint16(re.Intn(65536)),
			}}
			continue
		}
		records[i] = Record{Image: ImageRecord{
			Layer:   uint8(re.Intn(MaxLayer + 1)),
			Path:    uint32(re.Intn(1 << 24)),
			Channel: uint8(re.Intn(256)),
			ValueL:  uint8(re.Intn(256)),
			ValueR:  uint8(re.Intn(256)),
		}}
	}

	var wire bytes.Buffer
	for _, rec := range records {
		buf := rec.Serialize()
		wire.Write(buf[:])
	}

	raw := wire.Bytes()
	for i, want := range records {
		got, err := DeserializeRecord(raw[i*RecordSize:])
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got.Serialize() != want.Serialize() {
			t.Errorf("record %d mismatch: got %+v, want %+v", i, got, want)
		}
	}
}
