package tuya

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	// seq 0x0102, dp2 value 450, dp18 value 215, dp3 string "ok"
	payload := []byte{
		0x01, 0x02,
		0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x01, 0xC2,
		0x12, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0xD7,
		0x03, 0x03, 0x00, 0x02, 'o', 'k',
	}

	f, err := DecodeFrame(payload)
	if err != nil {
		t.Fatal(err)
	}
	if f.Seq != 0x0102 {
		t.Errorf("seq = 0x%04X, want 0x0102", f.Seq)
	}
	if len(f.DataPoints) != 3 {
		t.Fatalf("decoded %d data points, want 3", len(f.DataPoints))
	}

	if v, ok := f.DataPoints[0].Number(); !ok || v != 450 {
		t.Errorf("dp2 = %v, %v; want 450", v, ok)
	}
	if v, ok := f.DataPoints[1].Number(); !ok || v != 215 {
		t.Errorf("dp18 = %v, %v; want 215", v, ok)
	}
	if _, ok := f.DataPoints[2].Number(); ok {
		t.Error("string dp should have no numeric reading")
	}
	if f.DataPoints[2].Value() != "ok" {
		t.Errorf("dp3 value = %v, want ok", f.DataPoints[2].Value())
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	payload := []byte{
		0x00, 0x01,
		0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x01, 0xC2,
		0x12, 0x02, 0x00, 0x04, 0x00, 0x00, // two data bytes missing
	}

	f, err := DecodeFrame(payload)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	if len(f.DataPoints) != 1 || f.DataPoints[0].ID != 2 {
		t.Errorf("expected the complete dp2 to survive, got %+v", f.DataPoints)
	}
}

func TestDecodeFrameTrailingBytes(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x00, 0x01, 0x02, 0x02}); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
	if _, err := DecodeFrame([]byte{0x00}); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeFrameEmpty(t *testing.T) {
	f, err := DecodeFrame([]byte{0x00, 0x07})
	if err != nil {
		t.Fatal(err)
	}
	if f.Seq != 7 || len(f.DataPoints) != 0 {
		t.Errorf("got %+v", f)
	}
}

func TestEncodeFrame(t *testing.T) {
	f := Frame{Seq: 9, DataPoints: []DataPoint{NewValue(2, 450), {ID: 1, Type: TypeBool, Data: []byte{1}}}}
	want := []byte{
		0x00, 0x09,
		0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x01, 0xC2,
		0x01, 0x01, 0x00, 0x01, 0x01,
	}
	got := EncodeFrame(f)
	if !bytes.Equal(got, want) {
		t.Errorf("encoded %X, want %X", got, want)
	}

	back, err := DecodeFrame(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.DataPoints) != 2 || back.DataPoints[1].Value() != true {
		t.Errorf("decoded %+v", back)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		dp   DataPoint
		want float64
		ok   bool
	}{
		{"negative value", NewValue(18, -55), -55, true},
		{"pm25 sentinel", NewValue(2, 0xAAAB), 0xAAAB, true},
		{"bool false", DataPoint{Type: TypeBool, Data: []byte{0}}, 0, true},
		{"enum", DataPoint{Type: TypeEnum, Data: []byte{3}}, 3, true},
		{"bitmap 2 bytes", DataPoint{Type: TypeBitmap, Data: []byte{0x01, 0x00}}, 256, true},
		{"short value", DataPoint{Type: TypeValue, Data: []byte{1, 2}}, 0, false},
		{"raw", DataPoint{Type: TypeRaw, Data: []byte{1}}, 0, false},
		{"unknown type", DataPoint{Type: 0x09, Data: []byte{1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dp.Number()
			if ok != tt.ok || got != tt.want {
				t.Errorf("Number() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
