package ncs

import "testing"

func TestLinearScriptSingleBlock(t *testing.T) {
	a := newAsm()
	a.constInt(1)
	a.op(OpRSADD, TypeInt)
	a.retn()
	f := load(t, a)

	if len(f.Blocks()) != 1 {
		t.Fatalf("blocks = %d, want 1", len(f.Blocks()))
	}
	blk := f.RootBlock()
	if blk == nil {
		t.Fatal("nil root block")
	}
	if blk.Address != EntryAddress {
		t.Errorf("root at %08x, want %08x", blk.Address, EntryAddress)
	}
	if len(blk.Instructions) != 3 {
		t.Errorf("instructions = %d, want 3", len(blk.Instructions))
	}
	if len(blk.Children) != 0 || len(blk.Parents) != 0 {
		t.Errorf("children = %d, parents = %d, want 0, 0", len(blk.Children), len(blk.Parents))
	}
}

func TestConditionalBranchEdges(t *testing.T) {
	// RSADD I; JZ L; CONST I; L: RETN. The condition is not a constant,
	// so both arms stay live.
	a := newAsm()
	a.op(OpRSADD, TypeInt)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	if len(f.Blocks()) != 3 {
		t.Fatalf("blocks = %d, want 3", len(f.Blocks()))
	}
	root := f.RootBlock()
	bTrue := blockAt(t, f, dest)
	bFalse := blockAt(t, f, fallthru)

	if got := edgeType(t, root, bTrue); got != EdgeConditionalTrue {
		t.Errorf("true edge = %s", got)
	}
	if got := edgeType(t, root, bFalse); got != EdgeConditionalFalse {
		t.Errorf("false edge = %s", got)
	}
	if got := edgeType(t, bFalse, bTrue); got != EdgeUnconditional {
		t.Errorf("fallthrough edge = %s", got)
	}
	if !root.HasConditionalChildren() {
		t.Error("root should have conditional children")
	}
	if root.HasUnconditionalChildren() {
		t.Error("root should not have unconditional children")
	}
}

func TestBackwardJumpSplitsBlock(t *testing.T) {
	// CONST I; L: CONST I; JMP L. The jump lands inside the open block.
	a := newAsm()
	head := a.constInt(1)
	loop := a.constInt(2)
	a.jump(OpJMP, loop)
	f := load(t, a)

	if len(f.Blocks()) != 2 {
		t.Fatalf("blocks = %d, want 2", len(f.Blocks()))
	}
	bHead := blockAt(t, f, head)
	bLoop := blockAt(t, f, loop)

	if len(bHead.Instructions) != 1 {
		t.Errorf("head instructions = %d, want 1", len(bHead.Instructions))
	}
	if len(bLoop.Instructions) != 2 {
		t.Errorf("loop instructions = %d, want 2", len(bLoop.Instructions))
	}
	if got := edgeType(t, bHead, bLoop); got != EdgeUnconditional {
		t.Errorf("head edge = %s", got)
	}
	// The loop body jumps back to itself.
	if got := edgeType(t, bLoop, bLoop); got != EdgeUnconditional {
		t.Errorf("loop edge = %s", got)
	}

	// Instruction ownership is a partition: every instruction in exactly
	// one block.
	owners := map[*Instruction]*Block{}
	for _, blk := range f.Blocks() {
		for _, instr := range blk.Instructions {
			if prev, ok := owners[instr]; ok {
				t.Errorf("instruction %08x in blocks %08x and %08x",
					instr.Address, prev.Address, blk.Address)
			}
			owners[instr] = blk
			if instr.Block != blk {
				t.Errorf("instruction %08x back-reference mismatch", instr.Address)
			}
		}
	}
	if len(owners) != len(f.Instructions()) {
		t.Errorf("owned instructions = %d, total %d", len(owners), len(f.Instructions()))
	}
}

func TestEarlierLaterChildren(t *testing.T) {
	// A: RSADD; JZ R; C: RSADD; JZ A; R: RETN
	a := newAsm()
	aAddr := a.op(OpRSADD, TypeInt)
	a.jump(OpJZ, aAddr+16)
	cAddr := a.op(OpRSADD, TypeInt)
	a.jump(OpJZ, aAddr)
	rAddr := a.retn()
	f := load(t, a)

	bA := blockAt(t, f, aAddr)
	bC := blockAt(t, f, cAddr)
	bR := blockAt(t, f, rAddr)

	earlier := bC.EarlierChildren(false)
	if len(earlier) != 1 || earlier[0] != bA {
		t.Errorf("earlier children = %v", earlier)
	}
	later := bC.LaterChildren(false)
	if len(later) != 1 || later[0] != bR {
		t.Errorf("later children = %v", later)
	}
	laterParents := bA.LaterParents(false)
	if len(laterParents) != 1 || laterParents[0] != bC {
		t.Errorf("later parents = %v", laterParents)
	}

	if NextBlock(f.Blocks(), bA) != bC {
		t.Error("NextBlock mismatch")
	}
	if PreviousBlock(f.Blocks(), bC) != bA {
		t.Error("PreviousBlock mismatch")
	}
	if PreviousBlock(f.Blocks(), bA) != nil {
		t.Error("expected nil before the first block")
	}
}

func TestParentChildEdgeType(t *testing.T) {
	a := newAsm()
	a.op(OpRSADD, TypeInt)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	root := f.RootBlock()
	bTrue := blockAt(t, f, dest)
	bFalse := blockAt(t, f, fallthru)

	if idx := FindParentChildBlock(root, bTrue); idx < 0 {
		t.Error("true arm not found among children")
	}
	if et, ok := ParentChildEdgeType(root, bFalse); !ok || et != EdgeConditionalFalse {
		t.Errorf("edge type = %s, ok = %v", et, ok)
	}
	if _, ok := ParentChildEdgeType(bTrue, root); ok {
		t.Error("reversed edge reported as existing")
	}
	if !HasLinearPath(bFalse, bTrue) {
		t.Error("expected linear path from fallthrough to join")
	}
}

func TestJumpToEntrySelfLoop(t *testing.T) {
	// CONST I; CONST I; JMP entry. The target is already a block start, so
	// nothing splits: the whole stream is one block looping on itself.
	a := newAsm()
	a.constInt(1)
	a.constInt(2)
	a.jump(OpJMP, EntryAddress)
	f := load(t, a)

	if got := len(f.Blocks()); got != 1 {
		t.Fatalf("blocks = %d, want 1", got)
	}
	blk := f.RootBlock()
	if got := len(blk.Instructions); got != 3 {
		t.Errorf("instructions = %d, want 3", got)
	}
	if got := edgeType(t, blk, blk); got != EdgeUnconditional {
		t.Errorf("self edge = %s, want unconditional", got)
	}
}
