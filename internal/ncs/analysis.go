package ncs

import (
	"fmt"

	"ncsdis/internal/ncsfmt"
)

// ActionTable resolves the stack behavior of engine routines invoked through
// ACTION. Implementations come from game profiles; a nil table falls back to
// a single untyped return cell per routine.
type ActionTable interface {
	// ActionName returns a printable name for an engine routine id.
	ActionName(id int32) string

	// ActionReturn returns the cells a routine pushes after consuming its
	// arguments, one VarType per cell. An empty slice means void.
	ActionReturn(id int32) []VarType
}

const cellSize = 4

// AnalyzeStack runs the optional stack analysis pass: a symbolic walk over
// the finished control flow graph that simulates the value stack, infers a
// variable for every pushed cell and captures the global space at SAVEBP.
//
// The pass is best effort. Any stack underflow, type mismatch or inconsistent
// stack height at a join stops it; the control flow graph itself is never
// touched, only HasStackAnalysis stays false. A second call is a no-op
// returning the first outcome.
func (f *File) AnalyzeStack(tbl ActionTable) error {
	if f.stackRan {
		return f.stackErr
	}
	f.stackRan = true

	if f.rootBlock == nil {
		f.stackOK = true
		return nil
	}

	a := &stackAnalyzer{file: f, tbl: tbl}
	if _, err := a.subroutine(f.rootBlock.SubRoutine, nil); err != nil {
		f.stackErr = fmt.Errorf("ncs: stack analysis: %w", err)
		f.diags.Addf(f.rootBlock.Address, ncsfmt.DiagStackAnalysis, "%v", err)
		return f.stackErr
	}

	f.stackOK = true
	return nil
}

type stackAnalyzer struct {
	file *File
	tbl  ActionTable
}

// stack is the simulated value stack, top at the end. Every element is one
// cell wide; vectors occupy three float cells.
type stack []*Variable

func (st stack) clone() stack {
	out := make(stack, len(st))
	copy(out, st)
	return out
}

func (a *stackAnalyzer) push(st stack, t VarType, creator *Instruction) stack {
	return append(st, a.file.variables.add(t, creator))
}

func (a *stackAnalyzer) pop(st stack, cells int, at *Instruction) (stack, error) {
	if cells < 0 || cells > len(st) {
		return nil, fmt.Errorf("%s at %08x: stack underflow (%d cells, have %d)",
			at.Opcode, at.Address, cells, len(st))
	}
	return st[:len(st)-cells], nil
}

// subroutine walks a subroutine body with the given entry stack and returns
// the stack at its exits. A body already walked is replayed as its recorded
// net delta; a body currently being walked (recursion) is assumed balanced.
func (a *stackAnalyzer) subroutine(sub *SubRoutine, in stack) (stack, error) {
	if sub == nil || sub.Entry == nil {
		return in, nil
	}
	if sub.analyzed {
		return a.replay(sub, in)
	}
	if sub.Entry.StackState != StackAnalyzeNone {
		// Recursive call, assume it balances its frame.
		return in, nil
	}

	var exits []stack
	if err := a.block(sub.Entry, in.clone(), &exits); err != nil {
		return nil, err
	}

	sub.analyzed = true
	if len(exits) == 0 {
		// Never returns.
		sub.stackDelta = 0
		return in, nil
	}
	for _, e := range exits[1:] {
		if len(e) != len(exits[0]) {
			return nil, fmt.Errorf("%s: exits disagree on stack height (%d != %d)",
				sub.Name(), len(e), len(exits[0]))
		}
	}
	sub.stackDelta = len(exits[0]) - len(in)
	return exits[0], nil
}

// replay applies a subroutine's recorded net stack delta without walking its
// body again.
func (a *stackAnalyzer) replay(sub *SubRoutine, in stack) (stack, error) {
	d := sub.stackDelta
	if d < 0 {
		if -d > len(in) {
			return nil, fmt.Errorf("%s: call underflows the stack", sub.Name())
		}
		return in[:len(in)+d], nil
	}
	out := in.clone()
	for i := 0; i < d; i++ {
		out = a.push(out, VarTypeAny, nil)
	}
	return out, nil
}

// block walks one block and continues along its live out-edges. Revisits are
// cut off after checking that the incoming stack height matches the one
// recorded on first entry.
func (a *stackAnalyzer) block(blk *Block, st stack, exits *[]stack) error {
	if blk.StackState != StackAnalyzeNone {
		if len(st) != blk.stackHeight {
			return fmt.Errorf("block %08x: stack height mismatch at join (%d != %d)",
				blk.Address, len(st), blk.stackHeight)
		}
		return nil
	}
	blk.StackState = StackAnalyzeInProgress
	blk.stackHeight = len(st)
	defer func() { blk.StackState = StackAnalyzeFinished }()

	var err error
	for _, instr := range blk.Instructions {
		if st, err = a.apply(instr, st); err != nil {
			return err
		}
	}

	last := blk.lastInstruction()
	if last != nil && last.Opcode == OpRETN {
		*exits = append(*exits, st)
		return nil
	}

	if last != nil && last.Opcode == OpJSR {
		return a.call(blk, last, st, exits)
	}
	if last != nil && last.Opcode == OpSTORESTATE {
		// The detached state body starts from the capture-time stack but
		// runs later; its effects do not reach the sequential successor.
		for i, c := range blk.Children {
			if blk.ChildrenTypes[i] == EdgeStoreState {
				if _, err := a.subroutine(c.SubRoutine, st.clone()); err != nil {
					return err
				}
			}
		}
	}

	for i, c := range blk.Children {
		switch blk.ChildrenTypes[i] {
		case EdgeUnconditional, EdgeConditionalTrue, EdgeConditionalFalse:
			if err := a.block(c, st.clone(), exits); err != nil {
				return err
			}
		}
	}
	return nil
}

// call walks through a JSR: the callee body runs on the current stack, then
// execution resumes at the return site with the callee's effect applied.
func (a *stackAnalyzer) call(blk *Block, jsr *Instruction, st stack, exits *[]stack) error {
	var callee *SubRoutine
	for i, c := range blk.Children {
		if blk.ChildrenTypes[i] == EdgeFunctionCall {
			callee = c.SubRoutine
			break
		}
	}
	out, err := a.subroutine(callee, st)
	if err != nil {
		return err
	}

	ret := a.file.findInstruction(jsr.Address + jsr.Size)
	if ret == nil || ret.Block == nil {
		// Tail call at the end of the stream.
		return nil
	}
	return a.block(ret.Block, out.clone(), exits)
}

// apply simulates one instruction's effect on the stack.
func (a *stackAnalyzer) apply(instr *Instruction, st stack) (stack, error) {
	switch instr.Opcode {
	case OpRSADD:
		return a.push(st, varTypeOf(instr.Type), instr), nil

	case OpCONST:
		return a.push(st, varTypeOf(instr.Type), instr), nil

	case OpCPTOPSP:
		return a.copyUp(st, instr)

	case OpCPDOWNSP:
		return a.copyDown(st, instr)

	case OpCPTOPBP:
		return a.globalUp(st, instr)

	case OpCPDOWNBP:
		return a.globalDown(st, instr)

	case OpMOVSP:
		return a.pop(st, cells(-instr.Args[0]), instr)

	case OpACTION:
		return a.action(st, instr)

	case OpADD, OpSUB, OpMUL, OpDIV:
		return a.arith(st, instr)

	case OpMOD, OpSHLEFT, OpSHRIGHT, OpUSHRIGHT,
		OpLOGAND, OpLOGOR, OpINCOR, OpEXCOR, OpBOOLAND:
		st, err := a.pop(st, 2, instr)
		if err != nil {
			return nil, err
		}
		return a.push(st, VarTypeInt, instr), nil

	case OpEQ, OpNEQ:
		n := 2
		if instr.Type == TypeStructStruct {
			n = 2 * cells(instr.Args[0])
		}
		st, err := a.pop(st, n, instr)
		if err != nil {
			return nil, err
		}
		return a.push(st, VarTypeInt, instr), nil

	case OpGEQ, OpGT, OpLT, OpLEQ:
		st, err := a.pop(st, 2, instr)
		if err != nil {
			return nil, err
		}
		return a.push(st, VarTypeInt, instr), nil

	case OpNEG, OpCOMP, OpNOT:
		if len(st) < 1 {
			return nil, fmt.Errorf("%s at %08x: stack underflow", instr.Opcode, instr.Address)
		}
		t := VarTypeInt
		if instr.Opcode == OpNEG && instr.Type == TypeFloat {
			t = VarTypeFloat
		}
		st, err := a.pop(st, 1, instr)
		if err != nil {
			return nil, err
		}
		return a.push(st, t, instr), nil

	case OpDESTRUCT:
		return a.destruct(st, instr)

	case OpDECSP, OpINCSP:
		return st, a.checkLocalInt(st, instr)

	case OpDECBP, OpINCBP:
		return st, a.checkGlobalInt(instr)

	case OpSAVEBP:
		// Everything below this point becomes the global space.
		a.file.globals = append([]*Variable(nil), st...)
		for _, v := range a.file.globals {
			v.Global = true
		}
		return a.push(st, VarTypeInt, instr), nil

	case OpRESTOREBP:
		return a.pop(st, 1, instr)

	case OpJZ, OpJNZ:
		return a.pop(st, 1, instr)

	case OpJMP, OpJSR, OpRETN, OpSTORESTATE, OpSTORESTATEALL, OpNOP:
		return st, nil
	}

	return nil, fmt.Errorf("%s at %08x: no stack semantics", instr.Opcode, instr.Address)
}

// cells converts a byte count to stack cells.
func cells(bytes int32) int {
	return int(bytes) / cellSize
}

// region resolves a negative stack offset and a byte size to an index range
// within st.
func region(st stack, off, size int32, at *Instruction) (lo, hi int, err error) {
	depth := cells(-off)
	n := cells(size)
	lo = len(st) - depth
	hi = lo + n
	if off >= 0 || n <= 0 || lo < 0 || hi > len(st) {
		return 0, 0, fmt.Errorf("%s at %08x: offset %d size %d outside the stack",
			at.Opcode, at.Address, off, size)
	}
	return lo, hi, nil
}

func (a *stackAnalyzer) copyUp(st stack, instr *Instruction) (stack, error) {
	lo, hi, err := region(st, instr.Args[0], instr.Args[1], instr)
	if err != nil {
		return nil, err
	}
	for _, src := range st[lo:hi] {
		st = a.push(st, src.Type, instr)
	}
	return st, nil
}

func (a *stackAnalyzer) copyDown(st stack, instr *Instruction) (stack, error) {
	n := cells(instr.Args[1])
	if n > len(st) {
		return nil, fmt.Errorf("%s at %08x: stack underflow", instr.Opcode, instr.Address)
	}
	lo, hi, err := region(st, instr.Args[0], instr.Args[1], instr)
	if err != nil {
		return nil, err
	}
	src := st[len(st)-n:]
	for i := lo; i < hi; i++ {
		if err := mergeType(st[i], src[i-lo], instr); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (a *stackAnalyzer) globalUp(st stack, instr *Instruction) (stack, error) {
	g := a.file.globals
	lo, hi, err := region(g, instr.Args[0], instr.Args[1], instr)
	if err != nil {
		return nil, err
	}
	for _, src := range g[lo:hi] {
		st = a.push(st, src.Type, instr)
	}
	return st, nil
}

func (a *stackAnalyzer) globalDown(st stack, instr *Instruction) (stack, error) {
	g := a.file.globals
	n := cells(instr.Args[1])
	if n > len(st) {
		return nil, fmt.Errorf("%s at %08x: stack underflow", instr.Opcode, instr.Address)
	}
	lo, hi, err := region(g, instr.Args[0], instr.Args[1], instr)
	if err != nil {
		return nil, err
	}
	src := st[len(st)-n:]
	for i := lo; i < hi; i++ {
		if err := mergeType(g[i], src[i-lo], instr); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// mergeType narrows dst toward src's type, rejecting contradictions.
func mergeType(dst, src *Variable, at *Instruction) error {
	switch {
	case src.Type == VarTypeAny:
	case dst.Type == VarTypeAny:
		dst.Type = src.Type
	case dst.Type != src.Type:
		return fmt.Errorf("%s at %08x: type mismatch (%s written over %s)",
			at.Opcode, at.Address, src.Type, dst.Type)
	}
	return nil
}

// arith handles the four typed arithmetic operators, including the vector
// forms that operate on three float cells at a time.
func (a *stackAnalyzer) arith(st stack, instr *Instruction) (stack, error) {
	popN, pushT, pushN := 2, VarTypeInt, 1
	switch instr.Type {
	case TypeIntInt:
	case TypeFloatFloat, TypeIntFloat, TypeFloatInt:
		pushT = VarTypeFloat
	case TypeStringString:
		pushT = VarTypeString
	case TypeVectorVector:
		popN, pushT, pushN = 6, VarTypeFloat, 3
	case TypeVectorFloat, TypeFloatVector:
		popN, pushT, pushN = 4, VarTypeFloat, 3
	default:
		return nil, fmt.Errorf("%s at %08x: invalid operand type %s",
			instr.Opcode, instr.Address, instr.Type)
	}
	st, err := a.pop(st, popN, instr)
	if err != nil {
		return nil, err
	}
	for i := 0; i < pushN; i++ {
		st = a.push(st, pushT, instr)
	}
	return st, nil
}

// action pops one cell per declared argument and pushes the routine's return
// cells from the table.
func (a *stackAnalyzer) action(st stack, instr *Instruction) (stack, error) {
	id, argc := instr.Args[0], instr.Args[1]
	st, err := a.pop(st, int(argc), instr)
	if err != nil {
		return nil, err
	}
	ret := []VarType{VarTypeAny}
	if a.tbl != nil {
		ret = a.tbl.ActionReturn(id)
	}
	for _, t := range ret {
		st = a.push(st, t, instr)
	}
	return st, nil
}

// destruct pops a struct off the stack keeping one element of it.
func (a *stackAnalyzer) destruct(st stack, instr *Instruction) (stack, error) {
	total, off, keep := cells(instr.Args[0]), cells(instr.Args[1]), cells(instr.Args[2])
	if total > len(st) || off < 0 || keep < 0 || off+keep > total {
		return nil, fmt.Errorf("%s at %08x: invalid destruct %d/%d/%d",
			instr.Opcode, instr.Address, total, off, keep)
	}
	base := len(st) - total
	kept := append(stack(nil), st[base+off:base+off+keep]...)
	return append(st[:base], kept...), nil
}

func (a *stackAnalyzer) checkLocalInt(st stack, instr *Instruction) error {
	depth := cells(-instr.Args[0])
	if depth <= 0 || depth > len(st) {
		return fmt.Errorf("%s at %08x: offset %d outside the stack",
			instr.Opcode, instr.Address, instr.Args[0])
	}
	return mergeType(st[len(st)-depth], &Variable{Type: VarTypeInt}, instr)
}

func (a *stackAnalyzer) checkGlobalInt(instr *Instruction) error {
	g := a.file.globals
	depth := cells(-instr.Args[0])
	if depth <= 0 || depth > len(g) {
		return fmt.Errorf("%s at %08x: offset %d outside the global space",
			instr.Opcode, instr.Address, instr.Args[0])
	}
	return mergeType(g[len(g)-depth], &Variable{Type: VarTypeInt}, instr)
}
