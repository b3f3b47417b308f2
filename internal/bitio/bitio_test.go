package bitio

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Write(0xF, 4)    // 1111
	w.WriteBool(false) // 0
	w.Write(2, 4)       // FT=2 -> 0010
	w.WriteBool(true)   // Q=1

	got := w.Bytes()
	if len(got) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(got))
	}

	r := NewReader(got)
	if v := r.Read(4); v != 0xF {
		t.Fatalf("CMR: got %x want %x", v, 0xF)
	}
	if r.ReadBool() != false {
		t.Fatalf("F bit: expected false")
	}
	if v := r.Read(4); v != 2 {
		t.Fatalf("FT: got %d want 2", v)
	}
	if r.ReadBool() != true {
		t.Fatalf("Q bit: expected true")
	}
}

func TestOverrunZeroPads(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_ = r.Read(8)
	v := r.Read(8)
	if v != 0 {
		t.Fatalf("expected 0 past end of buffer, got %d", v)
	}
	if !r.Overrun() {
		t.Fatalf("expected Overrun() to be true")
	}
}

func TestReadUE(t *testing.T) {
	// ue(v) encodings per H.264 Table 9-2: 0 -> "1", 1 -> "010", 2 -> "011"
	cases := []struct {
		bits []byte
		bits2 int
		want uint32
	}{}
	_ = cases

	w := NewWriter()
	w.WriteBool(true) // "1" -> 0
	buf := w.Bytes()
	r := NewReader(buf)
	if v := r.ReadUE(); v != 0 {
		t.Fatalf("ue(0): got %d", v)
	}

	w2 := NewWriter()
	w2.WriteBool(false)
	w2.WriteBool(true)
	w2.WriteBool(false)
	buf2 := w2.Bytes()
	r2 := NewReader(buf2)
	if v := r2.ReadUE(); v != 1 {
		t.Fatalf("ue(1): got %d", v)
	}
}

func TestAlignToByte(t *testing.T) {
	r := NewReader([]byte{0xAB, 0xCD})
	_ = r.Read(3)
	r.AlignToByte()
	if r.BitPosition() != 8 {
		t.Fatalf("expected bit position 8, got %d", r.BitPosition())
	}
	if v := r.Read(8); v != 0xCD {
		t.Fatalf("got %x want 0xCD", v)
	}
}
