package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"ncsdis/internal/ncs"
)

var warnColor = color.New(color.FgYellow, color.Bold)

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "path to a compiled script")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	f, err := loadScript(*in)
	if err != nil {
		return err
	}

	fmt.Printf("file:          %s\n", *in)
	fmt.Printf("size:          %d bytes\n", f.Size())
	fmt.Printf("instructions:  %d\n", len(f.Instructions()))
	fmt.Printf("blocks:        %d\n", len(f.Blocks()))
	fmt.Printf("subroutines:   %d\n", len(f.SubRoutines()))

	printRole("start", f.StartSubRoutine())
	printRole("global", f.GlobalSubRoutine())
	printRole("main", f.MainSubRoutine())

	if f.MultipleGlobalCandidates() {
		warnColor.Fprintln(os.Stderr, "warning: multiple global-initializer candidates")
	}
	for _, d := range f.Diags() {
		warnColor.Fprintf(os.Stderr, "warning: %s\n", d)
	}
	return nil
}

func printRole(role string, sub *ncs.SubRoutine) {
	if sub == nil {
		fmt.Printf("%-14s(none)\n", role+":")
		return
	}
	fmt.Printf("%-14s%s at 0x%08x, %d blocks\n", role+":", sub.Name(), sub.Address, len(sub.Blocks))
}

func loadScript(path string) (*ncs.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := ncs.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
