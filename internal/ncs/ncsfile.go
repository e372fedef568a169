package ncs

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"fortio.org/safecast"

	"ncsdis/internal/ncsfmt"
)

// File layout constants. A compiled script opens with an eight byte magic,
// followed by a size record: the T opcode byte and the total file size. The
// first real instruction sits right after it.
const (
	headerMagic = "NCS V1.0"
	sizeOpcode  = 0x42

	// EntryAddress is the address of the first instruction.
	EntryAddress uint32 = 13
)

// File is a parsed NCS script: the ordered instruction store, the control
// flow graph of basic blocks, and the subroutine partition. After Load
// returns, everything except the optional stack analysis pass is frozen and
// safe for unsynchronized concurrent reads.
type File struct {
	size uint32

	instructions []*Instruction
	blocks       []*Block
	subRoutines  []*SubRoutine

	rootBlock *Block

	multipleGlobal bool

	startSubRoutine  *SubRoutine
	globalSubRoutine *SubRoutine
	mainSubRoutine   *SubRoutine

	stackRan bool
	stackOK  bool
	stackErr error

	variables VariableSpace
	globals   []*Variable

	diags ncsfmt.Diags
}

// Load reads a compiled script from r and builds its analysis structures:
// decode, branch linking, block construction and subroutine classification,
// in that order. Any structural inconsistency aborts with a descriptive
// error; there is no partially usable result.
func Load(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ncs: read stream: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes is Load over an in-memory stream.
func LoadBytes(data []byte) (*File, error) {
	f := &File{}

	if err := f.parse(data); err != nil {
		return nil, fmt.Errorf("ncs: %w", err)
	}
	if err := f.linkBranches(); err != nil {
		return nil, fmt.Errorf("ncs: %w", err)
	}
	if err := f.findBlocks(); err != nil {
		return nil, fmt.Errorf("ncs: %w", err)
	}
	f.identifySubRoutineTypes()

	FindDeadBlockEdges(f.blocks)
	f.reportUnreachable()

	return f, nil
}

// parse validates the header and decodes the instruction stream. Each decode
// step consumes exactly its encoded size, and the sizes must sum to the
// stream length.
func (f *File) parse(data []byte) error {
	s := ncsfmt.NewStream(data)

	magic, err := s.ReadBytes(len(headerMagic))
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if !bytes.Equal(magic, []byte(headerMagic)) {
		return fmt.Errorf("header: bad magic %q", magic)
	}

	op, err := s.ReadByte()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if op != sizeOpcode {
		return fmt.Errorf("header: bad size opcode 0x%02X", op)
	}
	total, err := s.ReadUint32()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	streamLen, err := safecast.Conv[uint32](len(data))
	if err != nil {
		return fmt.Errorf("header: stream too large: %w", err)
	}
	if total != streamLen {
		return fmt.Errorf("header: size record %d != stream length %d", total, streamLen)
	}
	f.size = total

	for s.Remaining() > 0 {
		addr := uint32(s.Position())
		instr, err := decodeInstruction(s, addr)
		if err != nil {
			return err
		}
		f.instructions = append(f.instructions, instr)
	}
	// The loop consumed the stream exactly; a truncated final instruction
	// already failed inside decodeInstruction.
	return nil
}

// linkBranches resolves every branch destination to an instruction that
// actually exists. STORESTATE gets its destination here: the detached state
// body begins past the JMP that follows it.
func (f *File) linkBranches() error {
	for i, instr := range f.instructions {
		if instr.Opcode == OpSTORESTATE {
			if i+1 >= len(f.instructions) || f.instructions[i+1].Opcode != OpJMP {
				return fmt.Errorf("STORESTATE at %08x not followed by JMP", instr.Address)
			}
			skip := f.instructions[i+1]
			instr.Branches = []uint32{skip.Address + skip.Size}
		}

		for _, dest := range instr.branchDestinations() {
			if f.findInstruction(dest) == nil {
				return fmt.Errorf("%s at %08x branches to nonexistent address %08x",
					instr.Opcode, instr.Address, dest)
			}
		}
	}
	return nil
}

// identifySubRoutineTypes tags the start, global and main subroutines.
// Ambiguity is recorded, never silently resolved.
func (f *File) identifySubRoutineTypes() {
	start, global, main, multiple := classifySubRoutines(f.subRoutines)
	f.startSubRoutine = start
	f.globalSubRoutine = global
	f.mainSubRoutine = main
	f.multipleGlobal = multiple
	if multiple {
		f.diags.Addf(global.Address, ncsfmt.DiagAmbiguousGlobal,
			"multiple global-initializer candidates, keeping first")
	}
}

// reportUnreachable records a diagnostic for every block that cannot be
// reached from the root over live edges, so no block silently disappears
// from reachability queries.
func (f *File) reportUnreachable() {
	if f.rootBlock == nil {
		return
	}
	seen := map[*Block]bool{f.rootBlock: true}
	queue := []*Block{f.rootBlock}
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]
		for i, c := range blk.Children {
			if blk.ChildrenTypes[i] == EdgeDead {
				continue
			}
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	for _, blk := range f.blocks {
		if !seen[blk] {
			f.diags.Addf(blk.Address, ncsfmt.DiagUnreachable,
				"block unreachable from root over live edges")
		}
	}
}

// findInstructionIndex locates the instruction at an exact address by binary
// search over the address-ordered store. Returns -1 when absent.
func (f *File) findInstructionIndex(address uint32) int {
	i := sort.Search(len(f.instructions), func(i int) bool {
		return f.instructions[i].Address >= address
	})
	if i < len(f.instructions) && f.instructions[i].Address == address {
		return i
	}
	return -1
}

// findInstruction is the mutating lookup used during block construction.
func (f *File) findInstruction(address uint32) *Instruction {
	i := f.findInstructionIndex(address)
	if i < 0 {
		return nil
	}
	return f.instructions[i]
}

// Size returns the size of the script bytecode in bytes. It equals the size
// of the containing stream.
func (f *File) Size() uint32 { return f.size }

// Instructions returns all instructions, in address order.
func (f *File) Instructions() []*Instruction { return f.instructions }

// Blocks returns all blocks, in creation order.
func (f *File) Blocks() []*Block { return f.blocks }

// RootBlock returns the block at the entry address, or nil for an empty
// script.
func (f *File) RootBlock() *Block { return f.rootBlock }

// SubRoutines returns all subroutines.
func (f *File) SubRoutines() []*SubRoutine { return f.subRoutines }

// StartSubRoutine returns the subroutine where execution starts, or nil if
// none was identified.
func (f *File) StartSubRoutine() *SubRoutine { return f.startSubRoutine }

// GlobalSubRoutine returns the subroutine setting up global variables, or nil
// if the script has none.
func (f *File) GlobalSubRoutine() *SubRoutine { return f.globalSubRoutine }

// MainSubRoutine returns the main subroutine, or nil if it could not be
// identified.
func (f *File) MainSubRoutine() *SubRoutine { return f.mainSubRoutine }

// MultipleGlobalCandidates reports whether the global-initializer heuristic
// matched more than one subroutine.
func (f *File) MultipleGlobalCandidates() bool { return f.multipleGlobal }

// FindInstruction returns the instruction at an exact address, or nil.
func (f *File) FindInstruction(address uint32) *Instruction {
	return f.findInstruction(address)
}

// HasStackAnalysis reports whether the stack analysis pass ran and succeeded.
func (f *File) HasStackAnalysis() bool { return f.stackRan && f.stackOK }

// Variables returns the variable space inferred by the stack analysis pass.
func (f *File) Variables() VariableSpace { return f.variables }

// Globals returns the global variables captured at SAVEBP.
func (f *File) Globals() []*Variable { return f.globals }

// Diags returns the advisory findings collected during construction and
// analysis.
func (f *File) Diags() []ncsfmt.Diag { return f.diags.Items() }
