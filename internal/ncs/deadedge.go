package ncs

// FindDeadBlockEdges finds edges between blocks that are logically dead and
// will never be taken, and retypes them EdgeDead. Dead edges stay in the
// graph so that disassembly listings remain complete; consumers filter on the
// edge type when computing true reachability.
//
// The pass is a pure function of the graph and idempotent: running it twice
// yields the same tagged set.
func FindDeadBlockEdges(blocks []*Block) {
	for _, blk := range blocks {
		foldConstantConditional(blk)
	}
	propagateDeadEdges(blocks)
}

// foldConstantConditional kills the arm of a conditional jump whose outcome
// is fixed by an integer constant pushed immediately before it. The surviving
// arm becomes unconditional: the block no longer branches at runtime.
func foldConstantConditional(blk *Block) {
	if len(blk.Children) != 2 {
		return
	}
	trueIdx, falseIdx := -1, -1
	for i, t := range blk.ChildrenTypes {
		switch t {
		case EdgeConditionalTrue:
			trueIdx = i
		case EdgeConditionalFalse:
			falseIdx = i
		case EdgeDead:
			// Already folded on a previous run.
			return
		}
	}
	if trueIdx < 0 || falseIdx < 0 {
		return
	}

	n := len(blk.Instructions)
	if n < 2 {
		return
	}
	jump := blk.Instructions[n-1]
	cond := blk.Instructions[n-2]
	if jump.Opcode != OpJZ && jump.Opcode != OpJNZ {
		return
	}
	if cond.Opcode != OpCONST || cond.Type != TypeInt {
		return
	}

	taken := cond.Args[0] == 0
	if jump.Opcode == OpJNZ {
		taken = !taken
	}

	if taken {
		blk.ChildrenTypes[falseIdx] = EdgeDead
		blk.ChildrenTypes[trueIdx] = EdgeUnconditional
	} else {
		blk.ChildrenTypes[trueIdx] = EdgeDead
		blk.ChildrenTypes[falseIdx] = EdgeUnconditional
	}
}

// propagateDeadEdges marks the outgoing edges of blocks every one of whose
// incoming edges is dead: no path into such a block survives, so nothing out
// of it can run either. Subroutine entries are exempt, they can be invoked
// regardless of their incoming edges. Iterates to a fixed point.
func propagateDeadEdges(blocks []*Block) {
	for {
		changed := false
		for _, blk := range blocks {
			if len(blk.Parents) == 0 || isSubRoutineEntry(blk) || !allParentEdgesDead(blk) {
				continue
			}
			for i, t := range blk.ChildrenTypes {
				if t != EdgeDead {
					blk.ChildrenTypes[i] = EdgeDead
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func isSubRoutineEntry(blk *Block) bool {
	return blk.SubRoutine != nil && blk.SubRoutine.Entry == blk
}

func allParentEdgesDead(blk *Block) bool {
	for _, p := range blk.Parents {
		for i, c := range p.Children {
			if c == blk && p.ChildrenTypes[i] != EdgeDead {
				return false
			}
		}
	}
	return true
}
