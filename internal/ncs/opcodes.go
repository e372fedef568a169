// Package ncs parses compiled NWScript bytecode into instructions, a control
// flow graph of basic blocks, and subroutines.
package ncs

import "fmt"

// Opcode is an NCS instruction opcode.
type Opcode byte

const (
	OpCPDOWNSP      Opcode = 0x01
	OpRSADD         Opcode = 0x02
	OpCPTOPSP       Opcode = 0x03
	OpCONST         Opcode = 0x04
	OpACTION        Opcode = 0x05
	OpLOGAND        Opcode = 0x06
	OpLOGOR         Opcode = 0x07
	OpINCOR         Opcode = 0x08
	OpEXCOR         Opcode = 0x09
	OpBOOLAND       Opcode = 0x0A
	OpEQ            Opcode = 0x0B
	OpNEQ           Opcode = 0x0C
	OpGEQ           Opcode = 0x0D
	OpGT            Opcode = 0x0E
	OpLT            Opcode = 0x0F
	OpLEQ           Opcode = 0x10
	OpSHLEFT        Opcode = 0x11
	OpSHRIGHT       Opcode = 0x12
	OpUSHRIGHT      Opcode = 0x13
	OpADD           Opcode = 0x14
	OpSUB           Opcode = 0x15
	OpMUL           Opcode = 0x16
	OpDIV           Opcode = 0x17
	OpMOD           Opcode = 0x18
	OpNEG           Opcode = 0x19
	OpCOMP          Opcode = 0x1A
	OpMOVSP         Opcode = 0x1B
	OpSTORESTATEALL Opcode = 0x1C
	OpJMP           Opcode = 0x1D
	OpJSR           Opcode = 0x1E
	OpJZ            Opcode = 0x1F
	OpRETN          Opcode = 0x20
	OpDESTRUCT      Opcode = 0x21
	OpNOT           Opcode = 0x22
	OpDECSP         Opcode = 0x23
	OpINCSP         Opcode = 0x24
	OpJNZ           Opcode = 0x25
	OpCPDOWNBP      Opcode = 0x26
	OpCPTOPBP       Opcode = 0x27
	OpDECBP         Opcode = 0x28
	OpINCBP         Opcode = 0x29
	OpSAVEBP        Opcode = 0x2A
	OpRESTOREBP     Opcode = 0x2B
	OpSTORESTATE    Opcode = 0x2C
	OpNOP           Opcode = 0x2D
)

var opcodeNames = map[Opcode]string{
	OpCPDOWNSP:      "CPDOWNSP",
	OpRSADD:         "RSADD",
	OpCPTOPSP:       "CPTOPSP",
	OpCONST:         "CONST",
	OpACTION:        "ACTION",
	OpLOGAND:        "LOGAND",
	OpLOGOR:         "LOGOR",
	OpINCOR:         "INCOR",
	OpEXCOR:         "EXCOR",
	OpBOOLAND:       "BOOLAND",
	OpEQ:            "EQ",
	OpNEQ:           "NEQ",
	OpGEQ:           "GEQ",
	OpGT:            "GT",
	OpLT:            "LT",
	OpLEQ:           "LEQ",
	OpSHLEFT:        "SHLEFT",
	OpSHRIGHT:       "SHRIGHT",
	OpUSHRIGHT:      "USHRIGHT",
	OpADD:           "ADD",
	OpSUB:           "SUB",
	OpMUL:           "MUL",
	OpDIV:           "DIV",
	OpMOD:           "MOD",
	OpNEG:           "NEG",
	OpCOMP:          "COMP",
	OpMOVSP:         "MOVSP",
	OpSTORESTATEALL: "STORESTATEALL",
	OpJMP:           "JMP",
	OpJSR:           "JSR",
	OpJZ:            "JZ",
	OpRETN:          "RETN",
	OpDESTRUCT:      "DESTRUCT",
	OpNOT:           "NOT",
	OpDECSP:         "DECISP",
	OpINCSP:         "INCISP",
	OpJNZ:           "JNZ",
	OpCPDOWNBP:      "CPDOWNBP",
	OpCPTOPBP:       "CPTOPBP",
	OpDECBP:         "DECIBP",
	OpINCBP:         "INCIBP",
	OpSAVEBP:        "SAVEBP",
	OpRESTOREBP:     "RESTOREBP",
	OpSTORESTATE:    "STORESTATE",
	OpNOP:           "NOP",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", byte(o))
}

// IsBranch reports whether the opcode transfers control to an explicit target.
func (o Opcode) IsBranch() bool {
	switch o {
	case OpJMP, OpJSR, OpJZ, OpJNZ, OpSTORESTATE:
		return true
	}
	return false
}

// IsControl reports whether the opcode ends a basic block.
func (o Opcode) IsControl() bool {
	return o.IsBranch() || o == OpRETN
}

// InstructionType is the type qualifier byte following an opcode.
type InstructionType byte

const (
	TypeNone   InstructionType = 0x00
	TypeDirect InstructionType = 0x01

	TypeInt    InstructionType = 0x03
	TypeFloat  InstructionType = 0x04
	TypeString InstructionType = 0x05
	TypeObject InstructionType = 0x06

	TypeEngine0 InstructionType = 0x10
	TypeEngine1 InstructionType = 0x11
	TypeEngine2 InstructionType = 0x12
	TypeEngine3 InstructionType = 0x13
	TypeEngine4 InstructionType = 0x14
	TypeEngine5 InstructionType = 0x15

	TypeIntInt       InstructionType = 0x20
	TypeFloatFloat   InstructionType = 0x21
	TypeObjectObject InstructionType = 0x22
	TypeStringString InstructionType = 0x23
	TypeStructStruct InstructionType = 0x24
	TypeIntFloat     InstructionType = 0x25
	TypeFloatInt     InstructionType = 0x26

	TypeEngine0Engine0 InstructionType = 0x30
	TypeEngine1Engine1 InstructionType = 0x31
	TypeEngine2Engine2 InstructionType = 0x32
	TypeEngine3Engine3 InstructionType = 0x33
	TypeEngine4Engine4 InstructionType = 0x34
	TypeEngine5Engine5 InstructionType = 0x35

	TypeVectorVector InstructionType = 0x3A
	TypeVectorFloat  InstructionType = 0x3B
	TypeFloatVector  InstructionType = 0x3C
)

var typeNames = map[InstructionType]string{
	TypeNone:           "",
	TypeDirect:         "",
	TypeInt:            "I",
	TypeFloat:          "F",
	TypeString:         "S",
	TypeObject:         "O",
	TypeEngine0:        "E0",
	TypeEngine1:        "E1",
	TypeEngine2:        "E2",
	TypeEngine3:        "E3",
	TypeEngine4:        "E4",
	TypeEngine5:        "E5",
	TypeIntInt:         "II",
	TypeFloatFloat:     "FF",
	TypeObjectObject:   "OO",
	TypeStringString:   "SS",
	TypeStructStruct:   "TT",
	TypeIntFloat:       "IF",
	TypeFloatInt:       "FI",
	TypeEngine0Engine0: "E0E0",
	TypeEngine1Engine1: "E1E1",
	TypeEngine2Engine2: "E2E2",
	TypeEngine3Engine3: "E3E3",
	TypeEngine4Engine4: "E4E4",
	TypeEngine5Engine5: "E5E5",
	TypeVectorVector:   "VV",
	TypeVectorFloat:    "VF",
	TypeFloatVector:    "FV",
}

func (t InstructionType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(0x%02X)", byte(t))
}
