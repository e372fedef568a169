package ncs

import (
	"fmt"
	"strings"

	"ncsdis/internal/ncsfmt"
)

// Instruction is a decoded NCS instruction. Instructions are owned by the
// File's instruction store; everything else keeps non-owning pointers into it.
// Immutable after decode except for the Block back-reference, which is
// assigned once during block construction.
type Instruction struct {
	// Address is the absolute offset of the opcode byte within the stream.
	Address uint32

	Opcode Opcode
	Type   InstructionType

	// Size is the full encoded size in bytes, opcode and type included.
	Size uint32

	// Args holds the integer operands in encoding order. Meaning depends on
	// the opcode: jump offsets, stack offsets, copy sizes, action id and
	// argument count.
	Args []int32

	// FloatArg and StrArg hold the operand of CONST F / CONST S.
	FloatArg float32
	StrArg   string

	// Branches holds the resolved absolute destination addresses of a
	// branching instruction, validated by the branch linker.
	Branches []uint32

	// Block is the basic block this instruction belongs to.
	Block *Block
}

// decodeInstruction reads one instruction starting at the stream's current
// position. addr is the absolute address of the opcode byte.
func decodeInstruction(s *ncsfmt.Stream, addr uint32) (*Instruction, error) {
	start := s.Position()

	op, err := s.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("instruction at %08x: %w", addr, err)
	}
	ty, err := s.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("instruction at %08x: %w", addr, err)
	}

	instr := &Instruction{
		Address: addr,
		Opcode:  Opcode(op),
		Type:    InstructionType(ty),
	}

	if err := decodeOperands(s, instr); err != nil {
		return nil, fmt.Errorf("instruction %s at %08x: %w", instr.Opcode, addr, err)
	}

	instr.Size = uint32(s.Position() - start)
	return instr, nil
}

// decodeOperands consumes the operand bytes of instr.
func decodeOperands(s *ncsfmt.Stream, instr *Instruction) error {
	readInt32 := func() error {
		v, err := s.ReadInt32()
		if err != nil {
			return err
		}
		instr.Args = append(instr.Args, v)
		return nil
	}
	readUint16 := func() error {
		v, err := s.ReadUint16()
		if err != nil {
			return err
		}
		instr.Args = append(instr.Args, int32(v))
		return nil
	}

	switch instr.Opcode {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		// int32 stack offset, uint16 copy size.
		if err := readInt32(); err != nil {
			return err
		}
		return readUint16()

	case OpRSADD, OpLOGAND, OpLOGOR, OpINCOR, OpEXCOR, OpBOOLAND,
		OpGEQ, OpGT, OpLT, OpLEQ, OpSHLEFT, OpSHRIGHT, OpUSHRIGHT,
		OpADD, OpSUB, OpMUL, OpDIV, OpMOD, OpNEG, OpCOMP, OpNOT,
		OpSAVEBP, OpRESTOREBP, OpRETN, OpNOP, OpSTORESTATEALL:
		return nil

	case OpCONST:
		switch instr.Type {
		case TypeInt:
			return readInt32()
		case TypeFloat:
			f, err := s.ReadFloat32()
			if err != nil {
				return err
			}
			instr.FloatArg = f
			return nil
		case TypeString:
			str, err := s.ReadString()
			if err != nil {
				return err
			}
			instr.StrArg = str
			return nil
		case TypeObject:
			return readInt32()
		default:
			return fmt.Errorf("invalid CONST type 0x%02X", byte(instr.Type))
		}

	case OpACTION:
		// uint16 engine routine id, uint8 argument count.
		if err := readUint16(); err != nil {
			return err
		}
		argc, err := s.ReadByte()
		if err != nil {
			return err
		}
		instr.Args = append(instr.Args, int32(argc))
		return nil

	case OpEQ, OpNEQ:
		// Struct comparison carries the compared size in bytes.
		if instr.Type == TypeStructStruct {
			return readUint16()
		}
		return nil

	case OpMOVSP, OpDECSP, OpINCSP, OpDECBP, OpINCBP:
		return readInt32()

	case OpJMP, OpJSR, OpJZ, OpJNZ:
		// int32 offset relative to the instruction address.
		if err := readInt32(); err != nil {
			return err
		}
		instr.Branches = []uint32{uint32(int64(instr.Address) + int64(instr.Args[0]))}
		return nil

	case OpDESTRUCT:
		// uint16 total size, int16 offset of the kept element, uint16 kept size.
		if err := readUint16(); err != nil {
			return err
		}
		off, err := s.ReadInt16()
		if err != nil {
			return err
		}
		instr.Args = append(instr.Args, int32(off))
		return readUint16()

	case OpSTORESTATE:
		// uint32 BP cells, uint32 SP cells. The branch destination (the start
		// of the detached state body) is filled in by the linker, because it
		// lies past the JMP that follows this instruction.
		for i := 0; i < 2; i++ {
			v, err := s.ReadUint32()
			if err != nil {
				return err
			}
			instr.Args = append(instr.Args, int32(v))
		}
		return nil

	default:
		return fmt.Errorf("invalid opcode 0x%02X", byte(instr.Opcode))
	}
}

// String renders the instruction as a one-line disassembly.
func (i *Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.Opcode.String())
	if t := i.Type.String(); t != "" {
		b.WriteByte(' ')
		b.WriteString(t)
	}

	switch i.Opcode {
	case OpJMP, OpJSR, OpJZ, OpJNZ, OpSTORESTATE:
		if len(i.Branches) > 0 {
			fmt.Fprintf(&b, " %08x", i.Branches[0])
		}
	case OpCONST:
		switch i.Type {
		case TypeFloat:
			fmt.Fprintf(&b, " %g", i.FloatArg)
		case TypeString:
			fmt.Fprintf(&b, " %q", i.StrArg)
		default:
			fmt.Fprintf(&b, " %d", i.Args[0])
		}
	case OpACTION:
		fmt.Fprintf(&b, " %d %d", i.Args[0], i.Args[1])
	default:
		for _, a := range i.Args {
			fmt.Fprintf(&b, " %d", a)
		}
	}
	return b.String()
}

// branchDestinations returns the addresses an instruction may branch to.
// The sequential follower is not included.
func (i *Instruction) branchDestinations() []uint32 {
	return i.Branches
}
