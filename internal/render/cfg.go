package render

import (
	"fmt"
	"strings"

	"ncsdis/internal/ncs"
)

// CFGDOT renders the block-level control flow graph of a parsed script as
// DOT. Each basic block is a node grouped into a cluster per subroutine;
// edges are colored by flow category, dead edges drawn dashed.
func CFGDOT(f *ncs.File, t Theme) string {
	if len(f.Blocks()) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteByte('\n')

	for _, sub := range f.SubRoutinesByAddress() {
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n", dotID(sub.Name()))
		fmt.Fprintf(&b, "    color=%q;\n", t.ClusterBorder)
		fmt.Fprintf(&b, "    fontcolor=%q;\n", t.ClusterLabel)
		fmt.Fprintf(&b, "    fontname=\"Helvetica Neue,Helvetica\";\n")
		fmt.Fprintf(&b, "    fontsize=9;\n")
		fmt.Fprintf(&b, "    label=%q;\n", sub.Name())
		for _, blk := range sub.Blocks {
			writeBlockNode(&b, blk, sub.Entry == blk, t)
		}
		b.WriteString("  }\n")
	}
	b.WriteByte('\n')

	for _, blk := range f.Blocks() {
		from := blockID(blk)
		for i, c := range blk.Children {
			writeEdge(&b, from, blockID(c), blk.ChildrenTypes[i], t)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func blockID(blk *ncs.Block) string {
	return fmt.Sprintf("bb_%08x", blk.Address)
}

func writeBlockNode(b *strings.Builder, blk *ncs.Block, entry bool, t Theme) {
	var lines []string
	for _, instr := range blk.Instructions {
		line := fmt.Sprintf("0x%08x: %s", instr.Address, instr)
		lines = append(lines, dotEscape(truncLabel(line, 60)))
	}
	if len(lines) > 12 {
		kept := append(lines[:5], fmt.Sprintf("... (%d more)", len(lines)-10))
		lines = append(kept, lines[len(lines)-5:]...)
	}

	label := strings.Join(lines, "<br align=\"left\"/>")
	label += "<br align=\"left\"/>"

	attrs := ""
	if entry {
		attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeTrue)
	}
	if last := blk.Instructions[len(blk.Instructions)-1]; last.Opcode == ncs.OpRETN {
		attrs += fmt.Sprintf(", fillcolor=%q", t.ExitFill)
	}
	fmt.Fprintf(b, "    %s [label=<%s>%s];\n", blockID(blk), label, attrs)
}

func writeEdge(b *strings.Builder, from, to string, et ncs.BlockEdgeType, t Theme) {
	switch et {
	case ncs.EdgeConditionalTrue:
		fmt.Fprintf(b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
			from, to, t.EdgeTrue, t.EdgeTrue)
	case ncs.EdgeConditionalFalse:
		fmt.Fprintf(b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
			from, to, t.EdgeFalse, t.EdgeFalse)
	case ncs.EdgeFunctionCall:
		fmt.Fprintf(b, "  %s -> %s [color=%q, style=bold];\n", from, to, t.EdgeCall)
	case ncs.EdgeFunctionReturn:
		fmt.Fprintf(b, "  %s -> %s [color=%q, style=dotted, constraint=false];\n", from, to, t.EdgeReturn)
	case ncs.EdgeStoreState:
		fmt.Fprintf(b, "  %s -> %s [color=%q, style=bold];\n", from, to, t.EdgeState)
	case ncs.EdgeDead:
		fmt.Fprintf(b, "  %s -> %s [color=%q, style=dashed];\n", from, to, t.EdgeDead)
	default:
		fmt.Fprintf(b, "  %s -> %s [color=%q];\n", from, to, t.EdgeFlow)
	}
}
