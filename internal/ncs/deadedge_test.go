package ncs

import "testing"

func TestConstantConditionalFolds(t *testing.T) {
	// CONST I 1; JZ L: the jump never fires, the taken arm is dead.
	a := newAsm()
	a.constInt(1)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	root := f.RootBlock()
	bTrue := blockAt(t, f, dest)
	bFalse := blockAt(t, f, fallthru)

	if got := edgeType(t, root, bTrue); got != EdgeDead {
		t.Errorf("jump arm = %s, want dead", got)
	}
	if got := edgeType(t, root, bFalse); got != EdgeUnconditional {
		t.Errorf("fallthrough arm = %s, want unconditional", got)
	}
	if root.HasConditionalChildren() {
		t.Error("folded block still reports conditional children")
	}
	if !root.HasUnconditionalChildren() {
		t.Error("folded block should report unconditional children")
	}
}

func TestConstantConditionalFoldsZero(t *testing.T) {
	// CONST I 0; JZ L: the jump always fires, the fallthrough is dead.
	a := newAsm()
	a.constInt(0)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	root := f.RootBlock()
	if got := edgeType(t, root, blockAt(t, f, dest)); got != EdgeUnconditional {
		t.Errorf("jump arm = %s, want unconditional", got)
	}
	if got := edgeType(t, root, blockAt(t, f, fallthru)); got != EdgeDead {
		t.Errorf("fallthrough arm = %s, want dead", got)
	}
}

func TestConstantConditionalJNZ(t *testing.T) {
	// CONST I 0; JNZ L: never fires.
	a := newAsm()
	a.constInt(0)
	jnz := a.addr()
	a.jump(OpJNZ, jnz+12)
	a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	if got := edgeType(t, f.RootBlock(), blockAt(t, f, dest)); got != EdgeDead {
		t.Errorf("jump arm = %s, want dead", got)
	}
}

func TestDeadEdgePropagation(t *testing.T) {
	// The dead fallthrough block's own outgoing edge dies with it, and the
	// join stays reachable through the surviving arm.
	a := newAsm()
	a.constInt(0)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	bFalse := blockAt(t, f, fallthru)
	bJoin := blockAt(t, f, dest)

	if got := edgeType(t, bFalse, bJoin); got != EdgeDead {
		t.Errorf("propagated edge = %s, want dead", got)
	}

	// The fallthrough block is unreachable over live edges and reported.
	found := false
	for _, d := range f.Diags() {
		if d.Kind == "unreachable_block" && d.Address == fallthru {
			found = true
		}
	}
	if !found {
		t.Error("expected an unreachable diagnostic for the dead block")
	}
}

func TestDeadEdgePassIdempotent(t *testing.T) {
	a := newAsm()
	a.constInt(1)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	a.constInt(2)
	a.retn()
	f := load(t, a)

	snapshot := func() [][]BlockEdgeType {
		var out [][]BlockEdgeType
		for _, blk := range f.Blocks() {
			out = append(out, append([]BlockEdgeType(nil), blk.ChildrenTypes...))
		}
		return out
	}

	before := snapshot()
	FindDeadBlockEdges(f.Blocks())
	after := snapshot()

	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				t.Fatalf("block %d edge %d changed from %s to %s on second run",
					i, j, before[i][j], after[i][j])
			}
		}
	}
}

func TestNonConstantConditionalKept(t *testing.T) {
	// A value of unknown provenance keeps both arms live.
	a := newAsm()
	a.op(OpRSADD, TypeInt)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	fallthru := a.constInt(2)
	dest := a.retn()
	f := load(t, a)

	root := f.RootBlock()
	if got := edgeType(t, root, blockAt(t, f, dest)); got != EdgeConditionalTrue {
		t.Errorf("true arm = %s", got)
	}
	if got := edgeType(t, root, blockAt(t, f, fallthru)); got != EdgeConditionalFalse {
		t.Errorf("false arm = %s", got)
	}
}

func TestDeadCallEdgeKeepsCalleeLive(t *testing.T) {
	// CONST I 0; JZ join; JSR sub; join: RETN. The call site is dead, but
	// the callee entry keeps its own edges: other scripts may still reach
	// it, and it can be invoked regardless of who calls.
	a := newAsm()
	a.constInt(0)
	jz := a.addr()
	a.jump(OpJZ, jz+12)
	callSite := a.addr()
	a.jump(OpJSR, callSite+8)
	a.retn()
	sub := a.constInt(1)
	jmp := a.addr()
	a.jump(OpJMP, jmp+6)
	tail := a.retn()
	f := load(t, a)

	bCall := blockAt(t, f, callSite)
	bSub := blockAt(t, f, sub)
	bTail := blockAt(t, f, tail)

	if got := edgeType(t, bCall, bSub); got != EdgeDead {
		t.Errorf("call edge = %s, want dead", got)
	}
	if got := edgeType(t, bSub, bTail); got != EdgeUnconditional {
		t.Errorf("callee entry edge = %s, want unconditional", got)
	}
}
