package ncs

import "fmt"

// VarType is the inferred type of a stack variable.
type VarType int

const (
	VarTypeAny VarType = iota
	VarTypeInt
	VarTypeFloat
	VarTypeString
	VarTypeObject
	VarTypeEngine0
	VarTypeEngine1
	VarTypeEngine2
	VarTypeEngine3
	VarTypeEngine4
	VarTypeEngine5
)

var varTypeNames = [...]string{
	"any", "int", "float", "string", "object",
	"engine0", "engine1", "engine2", "engine3", "engine4", "engine5",
}

func (t VarType) String() string {
	if int(t) < len(varTypeNames) {
		return varTypeNames[t]
	}
	return fmt.Sprintf("VarType(%d)", int(t))
}

// varTypeOf maps an instruction type qualifier to the variable type it
// creates on the stack.
func varTypeOf(t InstructionType) VarType {
	switch t {
	case TypeInt:
		return VarTypeInt
	case TypeFloat:
		return VarTypeFloat
	case TypeString:
		return VarTypeString
	case TypeObject:
		return VarTypeObject
	case TypeEngine0:
		return VarTypeEngine0
	case TypeEngine1:
		return VarTypeEngine1
	case TypeEngine2:
		return VarTypeEngine2
	case TypeEngine3:
		return VarTypeEngine3
	case TypeEngine4:
		return VarTypeEngine4
	case TypeEngine5:
		return VarTypeEngine5
	}
	return VarTypeAny
}

// Variable is one value slot inferred by the stack analysis pass.
type Variable struct {
	ID      int
	Type    VarType
	Creator *Instruction // instruction that pushed the value, may be nil
	Global  bool         // captured into the global space at SAVEBP
}

// VariableSpace is every variable the stack analysis discovered.
type VariableSpace []*Variable

// add creates a new variable of the given type.
func (vs *VariableSpace) add(t VarType, creator *Instruction) *Variable {
	v := &Variable{ID: len(*vs), Type: t, Creator: creator}
	*vs = append(*vs, v)
	return v
}
