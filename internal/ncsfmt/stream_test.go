package ncsfmt

import "testing"

func TestReadUint16(t *testing.T) {
	// Big-endian throughout.
	tests := []struct {
		in   []byte
		want uint16
	}{
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x00, 0x01}, 1},
		{[]byte{0x01, 0x00}, 256},
		{[]byte{0xFF, 0xFF}, 65535},
	}
	for _, tt := range tests {
		s := NewStream(tt.in)
		got, err := s.ReadUint16()
		if err != nil {
			t.Errorf("ReadUint16(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadUint16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReadInt32(t *testing.T) {
	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x00, 0x00, 0x00, 0x00}, 0},
		{[]byte{0x00, 0x00, 0x00, 0x2A}, 42},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFF}, -1},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFA}, -6},
		{[]byte{0x7F, 0xFF, 0xFF, 0xFF}, 2147483647},
	}
	for _, tt := range tests {
		s := NewStream(tt.in)
		got, err := s.ReadInt32()
		if err != nil {
			t.Errorf("ReadInt32(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadInt32(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestReadFloat32(t *testing.T) {
	// 0x40490FDB is pi as IEEE 754 single, big-endian.
	s := NewStream([]byte{0x40, 0x49, 0x0F, 0xDB})
	got, err := s.ReadFloat32()
	if err != nil {
		t.Fatalf("ReadFloat32: %v", err)
	}
	if got < 3.14158 || got > 3.14160 {
		t.Errorf("ReadFloat32 = %g, want ~3.14159", got)
	}
}

func TestReadString(t *testing.T) {
	s := NewStream([]byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o', 'x'})
	got, err := s.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if s.Remaining() != 1 {
		t.Errorf("remaining = %d, want 1", s.Remaining())
	}
}

func TestReadString_Truncated(t *testing.T) {
	s := NewStream([]byte{0x00, 0x05, 'h', 'i'})
	if _, err := s.ReadString(); err != ErrStreamEOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReadEOF(t *testing.T) {
	s := NewStream([]byte{})
	if _, err := s.ReadByte(); err != ErrStreamEOF {
		t.Errorf("ReadByte: expected EOF, got %v", err)
	}
	s = NewStream([]byte{1})
	if _, err := s.ReadUint16(); err != ErrStreamEOF {
		t.Errorf("ReadUint16: expected EOF, got %v", err)
	}
	s = NewStream([]byte{1, 2, 3})
	if _, err := s.ReadUint32(); err != ErrStreamEOF {
		t.Errorf("ReadUint32: expected EOF, got %v", err)
	}
}

func TestStreamPosition(t *testing.T) {
	s := NewStreamAt([]byte{0, 0, 0, 7}, 2)
	if s.Position() != 2 {
		t.Errorf("position = %d, want 2", s.Position())
	}
	if s.Remaining() != 2 {
		t.Errorf("remaining = %d, want 2", s.Remaining())
	}
	v, err := s.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Errorf("ReadUint16 = %d, want 7", v)
	}
	if s.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", s.Remaining())
	}
}

func TestSkip(t *testing.T) {
	s := NewStream([]byte{1, 2, 3, 4})
	if err := s.Skip(3); err != nil {
		t.Fatal(err)
	}
	b, err := s.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 4 {
		t.Errorf("ReadByte = %d, want 4", b)
	}
	if err := s.Skip(1); err != ErrStreamEOF {
		t.Errorf("Skip past end: expected EOF, got %v", err)
	}
}
