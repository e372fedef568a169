package ncs

// BlockEdgeType classifies how control passes from a block to one child.
type BlockEdgeType int

const (
	EdgeUnconditional    BlockEdgeType = iota // child follows unconditionally
	EdgeConditionalTrue                       // true branch of a conditional
	EdgeConditionalFalse                      // false branch of a conditional
	EdgeFunctionCall                          // JSR into a subroutine
	EdgeFunctionReturn                        // RETN back to the caller
	EdgeStoreState                            // detached STORESTATE body
	EdgeDead                                  // logically dead, never taken
)

var edgeTypeNames = [...]string{
	"unconditional",
	"conditional-true",
	"conditional-false",
	"function-call",
	"function-return",
	"store-state",
	"dead",
}

func (t BlockEdgeType) String() string {
	if int(t) < len(edgeTypeNames) {
		return edgeTypeNames[t]
	}
	return "unknown"
}

// Block is a basic block of NCS instructions. Blocks are owned by the File's
// block store; parent and child lists hold non-owning pointers into it, and a
// block never relocates once created. Splitting a block appends a new block
// rather than moving the old one.
type Block struct {
	// Address of the first instruction, and the block's identity.
	Address uint32

	// Instructions making up this block, in address order.
	Instructions []*Instruction

	Parents  []*Block // blocks leading into this block
	Children []*Block // blocks following this block

	// ChildrenTypes describes how this block leads into each child.
	// Invariant: len(ChildrenTypes) == len(Children).
	ChildrenTypes []BlockEdgeType

	// SubRoutine this block belongs to, assigned during construction.
	SubRoutine *SubRoutine

	// StackState tracks the progress of the optional stack analysis pass.
	StackState StackAnalyzeState

	// stackHeight is the stack height on entry, recorded by the analyzer.
	stackHeight int
}

// StackAnalyzeState is the per-block progress tag of the stack analysis pass.
type StackAnalyzeState int

const (
	StackAnalyzeNone StackAnalyzeState = iota
	StackAnalyzeInProgress
	StackAnalyzeFinished
)

// lastInstruction returns the final instruction of the block, or nil.
func (b *Block) lastInstruction() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// HasConditionalChildren reports whether any child is conditionally followed.
func (b *Block) HasConditionalChildren() bool {
	for _, t := range b.ChildrenTypes {
		if t == EdgeConditionalTrue || t == EdgeConditionalFalse {
			return true
		}
	}
	return false
}

// HasUnconditionalChildren reports whether the block has exactly one followed
// child: either a single unconditional edge, or a collapsed conditional where
// one arm has been marked dead.
func (b *Block) HasUnconditionalChildren() bool {
	if len(b.ChildrenTypes) == 1 && b.ChildrenTypes[0] == EdgeUnconditional {
		return true
	}
	if len(b.ChildrenTypes) == 2 &&
		(b.ChildrenTypes[0] == EdgeDead || b.ChildrenTypes[1] == EdgeDead) {
		return true
	}
	return false
}

// isSubRoutineEdge reports whether an edge type crosses a subroutine boundary.
func isSubRoutineEdge(t BlockEdgeType) bool {
	return t == EdgeFunctionCall || t == EdgeFunctionReturn || t == EdgeStoreState
}

// EarlierChildren returns all children at an earlier, smaller address.
// Subroutine-crossing edges are skipped unless includeSubRoutines is set.
func (b *Block) EarlierChildren(includeSubRoutines bool) []*Block {
	var out []*Block
	for i, c := range b.Children {
		if !includeSubRoutines && isSubRoutineEdge(b.ChildrenTypes[i]) {
			continue
		}
		if c.Address < b.Address {
			out = append(out, c)
		}
	}
	return out
}

// LaterChildren returns all children at a later, larger address.
func (b *Block) LaterChildren(includeSubRoutines bool) []*Block {
	var out []*Block
	for i, c := range b.Children {
		if !includeSubRoutines && isSubRoutineEdge(b.ChildrenTypes[i]) {
			continue
		}
		if c.Address > b.Address {
			out = append(out, c)
		}
	}
	return out
}

// EarlierParents returns all parents at an earlier, smaller address.
func (b *Block) EarlierParents(includeSubRoutines bool) []*Block {
	var out []*Block
	for _, p := range b.Parents {
		if !includeSubRoutines {
			if i := FindParentChildBlock(p, b); i >= 0 && isSubRoutineEdge(p.ChildrenTypes[i]) {
				continue
			}
		}
		if p.Address < b.Address {
			out = append(out, p)
		}
	}
	return out
}

// LaterParents returns all parents at a later, larger address.
func (b *Block) LaterParents(includeSubRoutines bool) []*Block {
	var out []*Block
	for _, p := range b.Parents {
		if !includeSubRoutines {
			if i := FindParentChildBlock(p, b); i >= 0 && isSubRoutineEdge(p.ChildrenTypes[i]) {
				continue
			}
		}
		if p.Address > b.Address {
			out = append(out, p)
		}
	}
	return out
}

// FindParentChildBlock returns the index of child within parent's children,
// or -1 if the edge does not exist.
func FindParentChildBlock(parent, child *Block) int {
	for i, c := range parent.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// ParentChildEdgeType returns the edge type connecting parent to child.
func ParentChildEdgeType(parent, child *Block) (BlockEdgeType, bool) {
	i := FindParentChildBlock(parent, child)
	if i < 0 {
		return 0, false
	}
	return parent.ChildrenTypes[i], true
}

// HasLinearPath reports whether control can flow from one block to the other
// through unconditional edges only, in either direction.
func HasLinearPath(b1, b2 *Block) bool {
	return hasLinearPathForward(b1, b2, make(map[*Block]bool)) ||
		hasLinearPathForward(b2, b1, make(map[*Block]bool))
}

func hasLinearPathForward(from, to *Block, seen map[*Block]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	if !from.HasUnconditionalChildren() {
		return false
	}
	for i, c := range from.Children {
		if from.ChildrenTypes[i] != EdgeUnconditional {
			continue
		}
		if hasLinearPathForward(c, to, seen) {
			return true
		}
	}
	return false
}

// NextBlock returns the block directly following a block in address order,
// or nil if the block is the last one.
func NextBlock(blocks []*Block, b *Block) *Block {
	var next *Block
	for _, c := range blocks {
		if c.Address <= b.Address {
			continue
		}
		if next == nil || c.Address < next.Address {
			next = c
		}
	}
	return next
}

// PreviousBlock returns the block directly preceding a block in address
// order, or nil if the block is the first one.
func PreviousBlock(blocks []*Block, b *Block) *Block {
	var prev *Block
	for _, c := range blocks {
		if c.Address >= b.Address {
			continue
		}
		if prev == nil || c.Address > prev.Address {
			prev = c
		}
	}
	return prev
}
