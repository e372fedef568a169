package ncs

import (
	"fmt"
	"sort"
	"strings"
)

// Listing renders the instruction stream as stable text output.
// Each line: <addr>  <disasm>  ; <comments>
// Subroutine entries get a labeled header, branch instructions a destination
// comment, and ACTION instructions the routine name from the table.
func (f *File) Listing(tbl ActionTable) string {
	heads := make(map[uint32]*SubRoutine, len(f.subRoutines))
	for _, sub := range f.subRoutines {
		heads[sub.Address] = sub
	}
	starts := make(map[uint32]bool, len(f.blocks))
	for _, blk := range f.blocks {
		starts[blk.Address] = true
	}

	var b strings.Builder
	for _, instr := range f.instructions {
		if sub, ok := heads[instr.Address]; ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s:\n", sub.Name())
		} else if starts[instr.Address] {
			fmt.Fprintf(&b, "loc_%08x:\n", instr.Address)
		}

		fmt.Fprintf(&b, "  0x%08x  %s", instr.Address, instr)

		switch {
		case instr.Opcode == OpACTION && tbl != nil:
			if name := tbl.ActionName(instr.Args[0]); name != "" {
				fmt.Fprintf(&b, "  ; %s", name)
			}
		case len(instr.Branches) > 0:
			dests := make([]string, 0, len(instr.Branches))
			for _, dest := range instr.Branches {
				dests = append(dests, f.label(dest))
			}
			fmt.Fprintf(&b, "  ; -> %s", strings.Join(dests, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// label names a branch destination: the owning subroutine's name when it is
// an entry point, a location label otherwise.
func (f *File) label(addr uint32) string {
	for _, sub := range f.subRoutines {
		if sub.Address == addr {
			return sub.Name()
		}
	}
	return fmt.Sprintf("loc_%08x", addr)
}

// SubRoutinesByAddress returns the subroutines sorted by entry address.
func (f *File) SubRoutinesByAddress() []*SubRoutine {
	out := append([]*SubRoutine(nil), f.subRoutines...)
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
