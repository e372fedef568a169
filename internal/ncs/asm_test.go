package ncs

import (
	"encoding/binary"
	"testing"
)

// asm assembles a script stream for tests: header, instructions, and the
// size record fixed up when the bytes are taken.
type asm struct {
	buf []byte
}

func newAsm() *asm {
	a := &asm{}
	a.buf = append(a.buf, headerMagic...)
	a.buf = append(a.buf, sizeOpcode, 0, 0, 0, 0)
	return a
}

// addr returns the address the next instruction will get.
func (a *asm) addr() uint32 { return uint32(len(a.buf)) }

// op appends one instruction and returns its address.
func (a *asm) op(op Opcode, ty InstructionType, operands ...byte) uint32 {
	at := a.addr()
	a.buf = append(a.buf, byte(op), byte(ty))
	a.buf = append(a.buf, operands...)
	return at
}

func (a *asm) constInt(v int32) uint32 { return a.op(OpCONST, TypeInt, i32(v)...) }
func (a *asm) retn() uint32            { return a.op(OpRETN, TypeNone) }

// jump appends a branch whose operand is the offset from its own address to
// dest. dest addresses must be computed beforehand for forward jumps.
func (a *asm) jump(op Opcode, dest uint32) uint32 {
	at := a.addr()
	return a.op(op, TypeNone, i32(int32(dest)-int32(at))...)
}

// bytes finalizes the size record and returns the stream.
func (a *asm) bytes() []byte {
	out := append([]byte(nil), a.buf...)
	binary.BigEndian.PutUint32(out[len(headerMagic)+1:], uint32(len(out)))
	return out
}

func i32(v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func u16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func load(t *testing.T, a *asm) *File {
	t.Helper()
	f, err := LoadBytes(a.bytes())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return f
}

// blockAt finds the block starting at the given address.
func blockAt(t *testing.T, f *File, addr uint32) *Block {
	t.Helper()
	for _, blk := range f.Blocks() {
		if blk.Address == addr {
			return blk
		}
	}
	t.Fatalf("no block at %08x", addr)
	return nil
}

// edgeType finds the edge type from parent to child, failing if absent.
func edgeType(t *testing.T, parent, child *Block) BlockEdgeType {
	t.Helper()
	for i, c := range parent.Children {
		if c == child {
			return parent.ChildrenTypes[i]
		}
	}
	t.Fatalf("no edge %08x -> %08x", parent.Address, child.Address)
	return 0
}
