// Package callgraph maps the subroutine structure of a parsed script onto
// lattice graphs for DOT rendering.
package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"ncsdis/internal/ncs"
)

// Build constructs a lattice.Graph from a parsed script. Each subroutine
// becomes a node; each JSR call site and STORESTATE capture becomes an edge.
// Engine routine invocations become edges to leaf nodes named by the table.
func Build(f *ncs.File, tbl ncs.ActionTable) *lattice.Graph {
	g := &lattice.Graph{}
	for _, sub := range f.SubRoutinesByAddress() {
		g.Nodes = append(g.Nodes, sub.Name())

		for _, blk := range sub.Blocks {
			for i, c := range blk.Children {
				switch blk.ChildrenTypes[i] {
				case ncs.EdgeFunctionCall, ncs.EdgeStoreState:
					if c.SubRoutine == nil {
						continue
					}
					g.Edges = append(g.Edges, lattice.Edge{
						Caller: sub.Name(),
						Callee: c.SubRoutine.Name(),
					})
				}
			}
			for _, instr := range blk.Instructions {
				if instr.Opcode != ncs.OpACTION {
					continue
				}
				g.Edges = append(g.Edges, lattice.Edge{
					Caller: sub.Name(),
					Callee: actionName(tbl, instr.Args[0]),
				})
			}
		}
	}
	g.Dedup()
	return g
}

// BuildCFG constructs a lattice.CFGGraph with one FuncCFG per subroutine.
func BuildCFG(f *ncs.File, tbl ncs.ActionTable) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, sub := range f.SubRoutinesByAddress() {
		cg.Funcs = append(cg.Funcs, BuildFuncCFG(sub, tbl))
	}
	return cg
}

// BuildFuncCFG maps one subroutine to a lattice.FuncCFG. Block ids follow
// address order; successors carry T/F marks for conditional arms. Dead edges
// and cross-subroutine edges are not successors, calls show up as CallSites
// instead.
func BuildFuncCFG(sub *ncs.SubRoutine, tbl ncs.ActionTable) *lattice.FuncCFG {
	blocks := append([]*ncs.Block(nil), sub.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Address < blocks[j].Address })

	id := make(map[*ncs.Block]int, len(blocks))
	for i, blk := range blocks {
		id[blk] = i
	}

	lcfg := &lattice.FuncCFG{Name: sub.Name()}
	idx := 0
	for i, blk := range blocks {
		lb := &lattice.BasicBlock{
			ID:    i,
			Start: idx,
			End:   idx + len(blk.Instructions),
		}

		for off, instr := range blk.Instructions {
			switch instr.Opcode {
			case ncs.OpRETN:
				lb.Term = true
			case ncs.OpACTION:
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx + off,
					Callee: actionName(tbl, instr.Args[0]),
				})
			}
		}

		for ci, c := range blk.Children {
			var cond string
			switch blk.ChildrenTypes[ci] {
			case ncs.EdgeConditionalTrue:
				cond = "T"
			case ncs.EdgeConditionalFalse:
				cond = "F"
			case ncs.EdgeUnconditional:
			case ncs.EdgeFunctionCall, ncs.EdgeStoreState:
				if c.SubRoutine != nil {
					lb.Calls = append(lb.Calls, lattice.CallSite{
						Offset: lb.End - 1,
						Callee: c.SubRoutine.Name(),
					})
				}
				continue
			default:
				continue
			}
			target, ok := id[c]
			if !ok {
				continue
			}
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: target, Cond: cond})
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
		idx += len(blk.Instructions)
	}
	return lcfg
}

func actionName(tbl ncs.ActionTable, id int32) string {
	if tbl != nil {
		if name := tbl.ActionName(id); name != "" {
			return name
		}
	}
	return fmt.Sprintf("action_%d", id)
}
