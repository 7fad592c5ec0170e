package audio

import (
	"math"
	"testing"
)

func TestInt16ToFloat32_Empty(t *testing.T) {
	out := Int16ToFloat32(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty slice, got length %d", len(out))
	}
}

func TestInt16ToFloat32_MaxInt16(t *testing.T) {
	out := Int16ToFloat32([]int16{math.MaxInt16, 0})
	if out[0] != 1.0 {
		t.Fatalf("expected 1.0 for MaxInt16, got %f", out[0])
	}
	if out[1] != 0 {
		t.Fatalf("expected 0.0, got %f", out[1])
	}
}

func TestFloat32ToInt16_Clamp(t *testing.T) {
	out := Float32ToInt16([]float32{1.5, -1.5, 0})
	if out[0] != math.MaxInt16 {
		t.Fatalf("expected %d (clamped to 1.0), got %d", math.MaxInt16, out[0])
	}
	if out[1] != -math.MaxInt16 {
		t.Fatalf("expected %d (clamped to -1.0), got %d", -math.MaxInt16, out[1])
	}
	if out[2] != 0 {
		t.Fatalf("expected 0, got %d", out[2])
	}
}

func TestBytesToInt16_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	out := BytesToInt16(Int16ToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestBytesToInt16_OddLengthDropsTail(t *testing.T) {
	out := BytesToInt16([]byte{0x01, 0x00, 0xFF})
	if len(out) != 1 || out[0] != 1 {
		t.Fatalf("expected [1], got %v", out)
	}
}

func TestU8ToFloat32(t *testing.T) {
	out := u8ToFloat32([]byte{128, 0, 255})
	if out[0] != 0 {
		t.Fatalf("128 should be silence, got %f", out[0])
	}
	if out[1] != -1 {
		t.Fatalf("0 should be -1.0, got %f", out[1])
	}
	if out[2] <= 0.99 {
		t.Fatalf("255 should be close to 1.0, got %f", out[2])
	}
}

func TestS24ToFloat32(t *testing.T) {
	// 0x7FFFFF, 0x800000 (最小值), 0xFFFFFF (-1)
	out := s24ToFloat32([]byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80, 0xFF, 0xFF, 0xFF})
	if out[0] != 1.0 {
		t.Fatalf("expected 1.0, got %f", out[0])
	}
	if out[1] >= -1.0 {
		t.Fatalf("expected slightly below -1.0, got %f", out[1])
	}
	if out[2] >= 0 || out[2] < -0.001 {
		t.Fatalf("expected tiny negative value, got %f", out[2])
	}
}
