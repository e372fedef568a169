package ncs

import (
	"fmt"
	"sort"
)

// SubRoutineType is the role a subroutine plays in the script.
type SubRoutineType int

const (
	SubRoutineNone   SubRoutineType = iota // no specific role identified
	SubRoutineStart                        // _start, where execution begins
	SubRoutineGlobal                       // _global, sets up global variables
	SubRoutineMain                         // main
)

func (t SubRoutineType) String() string {
	switch t {
	case SubRoutineStart:
		return "start"
	case SubRoutineGlobal:
		return "global"
	case SubRoutineMain:
		return "main"
	}
	return "none"
}

// SubRoutine is the set of blocks reachable from one call-target address.
type SubRoutine struct {
	// Address of the entry point.
	Address uint32

	// Entry is the first block of the subroutine.
	Entry *Block

	// Blocks owned by this subroutine. A block reached from several
	// subroutines belongs to the one that built it first.
	Blocks []*Block

	// Type is the classified role.
	Type SubRoutineType

	// StoreState marks a detached STORESTATE body.
	StoreState bool

	// Stack analysis bookkeeping: whether the body has been walked, and
	// the net stack delta in cells it was observed to produce.
	analyzed   bool
	stackDelta int
}

// Name returns a printable name for the subroutine, derived from its role.
func (s *SubRoutine) Name() string {
	switch s.Type {
	case SubRoutineStart:
		return "_start"
	case SubRoutineGlobal:
		return "_global"
	case SubRoutineMain:
		return "main"
	}
	if s.StoreState {
		return fmt.Sprintf("sta_%08x", s.Address)
	}
	return fmt.Sprintf("sub_%08x", s.Address)
}

// bodyBlocks returns the blocks owned by the subroutine in address order.
// Ownership comes from the builder: a block past a call site is connected
// only by FunctionReturn edges, so the owned set cannot be re-derived by a
// boundary-respecting walk from the entry.
func (s *SubRoutine) bodyBlocks() []*Block {
	out := append([]*Block(nil), s.Blocks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// exitBlocks returns the blocks of the subroutine ending in RETN.
func (s *SubRoutine) exitBlocks() []*Block {
	var out []*Block
	for _, blk := range s.bodyBlocks() {
		if last := blk.lastInstruction(); last != nil && last.Opcode == OpRETN {
			out = append(out, blk)
		}
	}
	return out
}

// contains reports whether the subroutine's reachable body includes an
// instruction with the given opcode.
func (s *SubRoutine) contains(op Opcode) bool {
	for _, blk := range s.bodyBlocks() {
		for _, instr := range blk.Instructions {
			if instr.Opcode == op {
				return true
			}
		}
	}
	return false
}

// subCall is one call site within a subroutine.
type subCall struct {
	site   uint32
	callee *SubRoutine
}

// callees lists the subroutines called from s, ordered by call site address.
func (s *SubRoutine) callees() []subCall {
	var out []subCall
	for _, blk := range s.bodyBlocks() {
		for i, c := range blk.Children {
			if blk.ChildrenTypes[i] != EdgeFunctionCall {
				continue
			}
			if c.SubRoutine == nil {
				continue
			}
			site := blk.Address
			if last := blk.lastInstruction(); last != nil {
				site = last.Address
			}
			out = append(out, subCall{site: site, callee: c.SubRoutine})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].site < out[j].site })
	return out
}

// classifySubRoutines identifies the start, global and main subroutines by
// structural pattern. It is a pure function over the finished graph:
//
//   - start is the subroutine containing the lowest-addressed instruction.
//   - global is a callee of start that saves the stack into a base pointer
//     (SAVEBP). If several callees match, the ambiguity is reported through
//     the multiple flag and the first match kept.
//   - main is the subroutine start calls after the global setup, or the first
//     callee of global when start calls nothing else.
func classifySubRoutines(subs []*SubRoutine) (start, global, main *SubRoutine, multiple bool) {
	if len(subs) == 0 {
		return nil, nil, nil, false
	}

	for _, s := range subs {
		if s.StoreState {
			continue
		}
		if start == nil || s.Address < start.Address {
			start = s
		}
	}
	if start == nil {
		return nil, nil, nil, false
	}

	calls := start.callees()

	// A script that never calls anything has no subroutine structure to
	// classify; its roles stay unidentified.
	if len(subs) == 1 && len(calls) == 0 {
		return nil, nil, nil, false
	}
	start.Type = SubRoutineStart

	// The global-variable subroutine is called from start before anything
	// else and captures its locals with SAVEBP.
	globalIdx := -1
	for i, c := range calls {
		if c.callee == start || !c.callee.contains(OpSAVEBP) {
			continue
		}
		if global == nil {
			global, globalIdx = c.callee, i
			continue
		}
		if c.callee != global {
			multiple = true
		}
	}
	if global != nil {
		global.Type = SubRoutineGlobal
	}

	// main follows the global setup call; without globals it is simply the
	// first subroutine start calls.
	for i, c := range calls {
		if c.callee == start || c.callee == global {
			continue
		}
		if global != nil && i < globalIdx {
			continue
		}
		main = c.callee
		break
	}
	if main == nil && global != nil {
		for _, c := range global.callees() {
			if c.callee != global && c.callee != start {
				main = c.callee
				break
			}
		}
	}
	if main != nil {
		main.Type = SubRoutineMain
	}

	return start, global, main, multiple
}
