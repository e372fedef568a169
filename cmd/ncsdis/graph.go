package main

import (
	"flag"
	"fmt"

	"github.com/zboralski/lattice/render"

	"ncsdis/internal/callgraph"
	"ncsdis/internal/output"
	nrender "ncsdis/internal/render"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	in := fs.String("in", "", "path to a compiled script")
	out := fs.String("out", "", "output directory")
	profPath := fs.String("profile", "", "game profile TOML")
	blocks := fs.Bool("blocks", false, "per-block CFG instead of the call graph")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}

	prof, err := loadProfileFlag(*profPath)
	if err != nil {
		return err
	}

	f, err := loadScript(*in)
	if err != nil {
		return err
	}
	name := scriptName(*in)

	if *blocks {
		dot := nrender.CFGDOT(f, nrender.NASA)
		return output.WriteDOT(*out, name+".blocks", dot)
	}

	g := callgraph.Build(f, prof)
	if err := output.WriteDOT(*out, name, render.DOT(g, name)); err != nil {
		return err
	}

	cfg := callgraph.BuildCFG(f, prof)
	return output.WriteDOT(*out, name+".cfg", render.DOTCFG(cfg, name))
}
