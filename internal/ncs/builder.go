package ncs

import "fmt"

// builder constructs the control flow graph. The address→block map is the
// single source of "already visited" truth, which bounds the walk on
// arbitrary backward branches.
type builder struct {
	file *File

	byAddr    map[uint32]*Block
	subByAddr map[uint32]*SubRoutine

	// walked marks blocks whose instruction walk has run (or that were
	// produced fully formed by a split).
	walked map[*Block]bool

	// seeds holds subroutine roots still to be processed.
	seeds []subSeed

	// work holds blocks of the subroutine currently being walked.
	work []*Block

	// returns holds call sites whose FunctionReturn edges are resolved once
	// every subroutine has been built.
	returns []pendingReturn
}

type subSeed struct {
	addr       uint32
	storeState bool
}

type pendingReturn struct {
	callee   uint32
	returnTo *Block
}

// findBlocks partitions the instruction store into basic blocks, starting a
// walk from every subroutine root discovered along the way.
func (f *File) findBlocks() error {
	if len(f.instructions) == 0 {
		return nil
	}

	b := &builder{
		file:      f,
		byAddr:    make(map[uint32]*Block),
		subByAddr: make(map[uint32]*SubRoutine),
		walked:    make(map[*Block]bool),
	}

	b.seed(f.instructions[0].Address, false)
	for len(b.seeds) > 0 {
		seed := b.seeds[0]
		b.seeds = b.seeds[1:]
		if err := b.buildSubRoutine(seed); err != nil {
			return err
		}
	}
	b.resolveReturns()

	f.rootBlock = b.byAddr[f.instructions[0].Address]
	return nil
}

// seed queues a subroutine root for construction.
func (b *builder) seed(addr uint32, storeState bool) {
	b.seeds = append(b.seeds, subSeed{addr: addr, storeState: storeState})
}

// buildSubRoutine creates the subroutine rooted at the seed address and walks
// every block reachable from it that is not already covered.
func (b *builder) buildSubRoutine(seed subSeed) error {
	if b.subByAddr[seed.addr] != nil {
		return nil
	}

	sub := &SubRoutine{
		Address:    seed.addr,
		StoreState: seed.storeState,
	}
	b.subByAddr[seed.addr] = sub
	b.file.subRoutines = append(b.file.subRoutines, sub)

	entry, err := b.blockAt(seed.addr)
	if err != nil {
		return err
	}
	sub.Entry = entry

	b.work = append(b.work[:0], entry)
	for len(b.work) > 0 {
		blk := b.work[len(b.work)-1]
		b.work = b.work[:len(b.work)-1]
		if b.walked[blk] {
			continue
		}
		b.walked[blk] = true
		b.adopt(sub, blk)
		if err := b.walkBlock(sub, blk); err != nil {
			return err
		}
	}
	return nil
}

// adopt assigns a block to a subroutine. A block reached from two subroutines
// keeps its first owner.
func (b *builder) adopt(sub *SubRoutine, blk *Block) {
	if blk.SubRoutine == nil {
		blk.SubRoutine = sub
		sub.Blocks = append(sub.Blocks, blk)
	}
}

// blockAt returns the block starting at addr, creating it if needed. When
// addr falls strictly inside an existing block, that block is split.
func (b *builder) blockAt(addr uint32) (*Block, error) {
	if blk, ok := b.byAddr[addr]; ok {
		return blk, nil
	}

	instr := b.file.findInstruction(addr)
	if instr == nil {
		return nil, fmt.Errorf("no instruction at block address %08x", addr)
	}
	if instr.Block != nil {
		return b.split(instr.Block, addr)
	}

	blk := &Block{Address: addr}
	b.byAddr[addr] = blk
	b.file.blocks = append(b.file.blocks, blk)
	return blk, nil
}

// split cuts a block at addr, which must lie strictly inside it. The tail
// instructions and all outgoing edges move to a new block; the original block
// is truncated and linked to the tail with a single unconditional edge. Every
// parent reference held by the old children is repointed so that no reference
// dangles.
func (b *builder) split(old *Block, addr uint32) (*Block, error) {
	cut := -1
	for i, instr := range old.Instructions {
		if instr.Address == addr {
			cut = i
			break
		}
	}
	if cut <= 0 {
		return nil, fmt.Errorf("split address %08x not inside block %08x", addr, old.Address)
	}

	tail := &Block{Address: addr}
	b.byAddr[addr] = tail
	b.file.blocks = append(b.file.blocks, tail)

	tail.Instructions = append(tail.Instructions, old.Instructions[cut:]...)
	for _, instr := range tail.Instructions {
		instr.Block = tail
	}
	old.Instructions = old.Instructions[:cut]

	// The tail inherits every outgoing edge; the children must now call the
	// tail their parent instead of the truncated block.
	tail.Children = old.Children
	tail.ChildrenTypes = old.ChildrenTypes
	for _, c := range tail.Children {
		for i, p := range c.Parents {
			if p == old {
				c.Parents[i] = tail
			}
		}
	}

	old.Children = []*Block{tail}
	old.ChildrenTypes = []BlockEdgeType{EdgeUnconditional}
	tail.Parents = []*Block{old}

	tail.SubRoutine = old.SubRoutine
	if tail.SubRoutine != nil {
		tail.SubRoutine.Blocks = append(tail.SubRoutine.Blocks, tail)
	}

	// The tail is fully formed; it must never be re-walked.
	b.walked[tail] = true
	return tail, nil
}

// link adds a typed edge between two blocks, once.
func (b *builder) link(parent, child *Block, t BlockEdgeType) {
	for i, c := range parent.Children {
		if c == child && parent.ChildrenTypes[i] == t {
			return
		}
	}
	parent.Children = append(parent.Children, child)
	parent.ChildrenTypes = append(parent.ChildrenTypes, t)

	for _, p := range child.Parents {
		if p == parent {
			return
		}
	}
	child.Parents = append(child.Parents, parent)
}

// walkBlock appends instructions to blk from its start address until a
// control transfer or an already-known block is reached.
func (b *builder) walkBlock(sub *SubRoutine, blk *Block) error {
	idx := b.file.findInstructionIndex(blk.Address)
	if idx < 0 {
		return fmt.Errorf("no instruction at block address %08x", blk.Address)
	}

	for idx < len(b.file.instructions) {
		instr := b.file.instructions[idx]

		// Ran into a block that already exists: fall through into it.
		if other, ok := b.byAddr[instr.Address]; ok && other != blk {
			b.link(blk, other, EdgeUnconditional)
			return nil
		}
		if instr.Block != nil && instr.Block != blk {
			tail, err := b.blockAt(instr.Address)
			if err != nil {
				return err
			}
			b.link(blk, tail, EdgeUnconditional)
			return nil
		}

		blk.Instructions = append(blk.Instructions, instr)
		instr.Block = blk

		if instr.Opcode.IsControl() {
			return b.branchBlock(sub, blk, instr)
		}
		idx++
	}
	// End of stream without a control transfer: the block simply ends.
	return nil
}

// branchBlock closes a block at its terminal control transfer and wires the
// child edges for each successor. Edges originate from instr.Block, not from
// blk: a backward branch into this very block splits it, moving instr into
// the tail.
func (b *builder) branchBlock(sub *SubRoutine, blk *Block, instr *Instruction) error {
	follower := instr.Address + instr.Size

	switch instr.Opcode {
	case OpJMP:
		return b.child(sub, instr, instr.Branches[0], EdgeUnconditional)

	case OpJZ, OpJNZ:
		if err := b.child(sub, instr, instr.Branches[0], EdgeConditionalTrue); err != nil {
			return err
		}
		return b.child(sub, instr, follower, EdgeConditionalFalse)

	case OpJSR:
		callee := instr.Branches[0]
		entry, err := b.blockAt(callee)
		if err != nil {
			return err
		}
		b.link(instr.Block, entry, EdgeFunctionCall)
		b.seed(callee, false)

		// The instruction after the call resumes this subroutine. It gets no
		// direct edge from the caller; the callee's exit blocks link to it
		// with FunctionReturn edges once all subroutines exist.
		ret, err := b.blockAt(follower)
		if err != nil {
			return err
		}
		b.returns = append(b.returns, pendingReturn{callee: callee, returnTo: ret})
		b.work = append(b.work, ret)
		return nil

	case OpSTORESTATE:
		body := instr.Branches[0]
		entry, err := b.blockAt(body)
		if err != nil {
			return err
		}
		b.link(instr.Block, entry, EdgeStoreState)
		b.seed(body, true)

		// Control itself continues sequentially, into the JMP that skips the
		// state body.
		return b.child(sub, instr, follower, EdgeUnconditional)

	case OpRETN:
		return nil
	}
	return fmt.Errorf("unhandled control transfer %s at %08x", instr.Opcode, instr.Address)
}

// child creates or looks up the block at addr, links it from the block that
// holds the transferring instruction, and queues it for walking within the
// current subroutine.
func (b *builder) child(sub *SubRoutine, from *Instruction, addr uint32, t BlockEdgeType) error {
	c, err := b.blockAt(addr)
	if err != nil {
		return err
	}
	b.link(from.Block, c, t)
	b.work = append(b.work, c)
	return nil
}

// resolveReturns adds FunctionReturn edges from each callee's exit blocks
// back to the block following the call site. A callee that never returns
// contributes no edges, leaving the return site explicitly unreachable.
func (b *builder) resolveReturns() {
	for _, pr := range b.returns {
		sub := b.subByAddr[pr.callee]
		if sub == nil {
			continue
		}
		for _, exit := range sub.exitBlocks() {
			b.link(exit, pr.returnTo, EdgeFunctionReturn)
		}
	}
}
