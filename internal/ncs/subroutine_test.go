package ncs

import "testing"

func TestCallEdgesAndReturn(t *testing.T) {
	// _start: JSR sub; RETN
	// sub:    CONST I; MOVSP -4; RETN
	a := newAsm()
	start := a.addr()
	a.jump(OpJSR, start+8)
	site := start
	ret := a.retn()
	sub := a.constInt(7)
	a.op(OpMOVSP, TypeDirect, i32(-4)...)
	subExit := sub
	a.retn()
	f := load(t, a)

	if len(f.SubRoutines()) != 2 {
		t.Fatalf("subroutines = %d, want 2", len(f.SubRoutines()))
	}

	bCall := blockAt(t, f, site)
	bRet := blockAt(t, f, ret)
	bSub := blockAt(t, f, sub)

	if got := edgeType(t, bCall, bSub); got != EdgeFunctionCall {
		t.Errorf("call edge = %s", got)
	}
	// No direct edge from the call block to its return site.
	if FindParentChildBlock(bCall, bRet) >= 0 {
		t.Error("unexpected direct edge from call block to return site")
	}
	// The callee's exit links back with a return edge.
	bExit := blockAt(t, f, subExit)
	if got := edgeType(t, bExit, bRet); got != EdgeFunctionReturn {
		t.Errorf("return edge = %s", got)
	}

	// Caller and callee own disjoint block sets.
	if bSub.SubRoutine == bCall.SubRoutine {
		t.Error("callee blocks assigned to the caller")
	}
	if bRet.SubRoutine != bCall.SubRoutine {
		t.Error("return site not owned by the caller")
	}
}

func TestClassifyStartGlobalMain(t *testing.T) {
	// _start calls the globals subroutine (SAVEBP) then main.
	a := newAsm()
	start := a.addr()
	a.jump(OpJSR, start+14) // globals
	a.jump(OpJSR, start+24) // main
	a.retn()
	glob := a.constInt(1)
	a.op(OpSAVEBP, TypeNone)
	a.retn()
	main := a.constInt(2)
	a.retn()
	f := load(t, a)

	if f.StartSubRoutine() == nil || f.StartSubRoutine().Address != start {
		t.Fatalf("start = %+v", f.StartSubRoutine())
	}
	if f.GlobalSubRoutine() == nil || f.GlobalSubRoutine().Address != glob {
		t.Fatalf("global = %+v", f.GlobalSubRoutine())
	}
	if f.MainSubRoutine() == nil || f.MainSubRoutine().Address != main {
		t.Fatalf("main = %+v", f.MainSubRoutine())
	}
	if f.MultipleGlobalCandidates() {
		t.Error("unexpected ambiguity")
	}

	if got := f.StartSubRoutine().Name(); got != "_start" {
		t.Errorf("start name = %q", got)
	}
	if got := f.GlobalSubRoutine().Name(); got != "_global" {
		t.Errorf("global name = %q", got)
	}
	if got := f.MainSubRoutine().Name(); got != "main" {
		t.Errorf("main name = %q", got)
	}
}

func TestClassifyNoCalls(t *testing.T) {
	a := newAsm()
	a.constInt(1)
	a.retn()
	f := load(t, a)

	if len(f.SubRoutines()) != 1 {
		t.Fatalf("subroutines = %d, want 1", len(f.SubRoutines()))
	}
	if f.StartSubRoutine() != nil {
		t.Error("start classified for a script with no calls")
	}
	if f.MainSubRoutine() != nil {
		t.Error("main classified for a script with no calls")
	}
	if f.SubRoutines()[0].Type != SubRoutineNone {
		t.Errorf("type = %s, want none", f.SubRoutines()[0].Type)
	}
}

func TestClassifyMultipleGlobalCandidates(t *testing.T) {
	// Two distinct SAVEBP callees: ambiguous, first one wins.
	a := newAsm()
	start := a.addr()
	a.jump(OpJSR, start+14)
	a.jump(OpJSR, start+18)
	a.retn()
	first := a.op(OpSAVEBP, TypeNone)
	a.retn()
	a.op(OpSAVEBP, TypeNone)
	a.retn()
	f := load(t, a)

	if !f.MultipleGlobalCandidates() {
		t.Fatal("expected ambiguity flag")
	}
	if f.GlobalSubRoutine() == nil || f.GlobalSubRoutine().Address != first {
		t.Errorf("global = %+v, want first candidate", f.GlobalSubRoutine())
	}

	found := false
	for _, d := range f.Diags() {
		if d.Kind == "ambiguous_global" {
			found = true
		}
	}
	if !found {
		t.Error("expected an ambiguity diagnostic")
	}
}

func TestStoreStateSubRoutine(t *testing.T) {
	// STORESTATE captures a detached body that begins after the JMP.
	a := newAsm()
	ss := a.op(OpSTORESTATE, InstructionType(0x10), append(i32(12), i32(4)...)...)
	jmp := a.addr()
	a.jump(OpJMP, jmp+8)
	body := a.retn()
	after := a.retn()
	f := load(t, a)

	if len(f.SubRoutines()) != 2 {
		t.Fatalf("subroutines = %d, want 2", len(f.SubRoutines()))
	}
	var sta *SubRoutine
	for _, sub := range f.SubRoutines() {
		if sub.StoreState {
			sta = sub
		}
	}
	if sta == nil {
		t.Fatal("no store-state subroutine")
	}
	if sta.Address != body {
		t.Errorf("state body at %08x, want %08x", sta.Address, body)
	}
	if got := sta.Name(); got != "sta_0000001d" {
		t.Errorf("name = %q", got)
	}

	bSS := blockAt(t, f, ss)
	bBody := blockAt(t, f, body)
	bAfter := blockAt(t, f, after)
	if got := edgeType(t, bSS, bBody); got != EdgeStoreState {
		t.Errorf("state edge = %s", got)
	}
	bJmp := blockAt(t, f, jmp)
	if got := edgeType(t, bSS, bJmp); got != EdgeUnconditional {
		t.Errorf("sequential edge = %s", got)
	}
	if got := edgeType(t, bJmp, bAfter); got != EdgeUnconditional {
		t.Errorf("skip edge = %s", got)
	}
}

func TestNonReturningCallee(t *testing.T) {
	// The callee loops forever; its return site must be unreachable.
	a := newAsm()
	start := a.addr()
	a.jump(OpJSR, start+8)
	ret := a.retn()
	loop := a.jump(OpJMP, start+8)
	_ = loop
	f := load(t, a)

	bRet := blockAt(t, f, ret)
	if len(bRet.Parents) != 0 {
		t.Errorf("return site parents = %d, want 0", len(bRet.Parents))
	}

	found := false
	for _, d := range f.Diags() {
		if d.Kind == "unreachable_block" && d.Address == ret {
			found = true
		}
	}
	if !found {
		t.Error("expected an unreachable diagnostic for the return site")
	}
}
