package mp3

import "testing"

func TestFloatToPCM16LE_ClampsAndConverts(t *testing.T) {
	in := []float32{0, 1, -1, 1.5, -1.5, 0.5}
	out := floatToPCM16LE(in)

	if len(out) != len(in)*2 {
		t.Fatalf("expected %d bytes, got %d", len(in)*2, len(out))
	}

	readInt16 := func(i int) int16 {
		return int16(uint16(out[i*2]) | uint16(out[i*2+1])<<8)
	}

	if v := readInt16(0); v != 0 {
		t.Errorf("sample 0: want 0, got %d", v)
	}
	if v := readInt16(1); v != 32767 {
		t.Errorf("sample 1 (clamped +1): want 32767, got %d", v)
	}
	if v := readInt16(2); v != -32767 {
		t.Errorf("sample 2 (clamped -1): want -32767, got %d", v)
	}
	if v := readInt16(3); v != 32767 {
		t.Errorf("sample 3 (clamped from 1.5): want 32767, got %d", v)
	}
	if v := readInt16(4); v != -32767 {
		t.Errorf("sample 4 (clamped from -1.5): want -32767, got %d", v)
	}
	if v := readInt16(5); v != 16383 {
		t.Errorf("sample 5 (0.5): want 16383, got %d", v)
	}
}
