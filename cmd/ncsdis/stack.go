package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

func cmdStack(args []string) error {
	fs := flag.NewFlagSet("stack", flag.ExitOnError)
	in := fs.String("in", "", "path to a compiled script")
	profPath := fs.String("profile", "", "game profile TOML")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	prof, err := loadProfileFlag(*profPath)
	if err != nil {
		return err
	}

	f, err := loadScript(*in)
	if err != nil {
		return err
	}

	if err := f.AnalyzeStack(prof); err != nil {
		warnColor.Fprintf(os.Stderr, "stack analysis failed: %v\n", err)
		fmt.Printf("stack:      failed\n")
		return nil
	}

	fmt.Printf("stack:      ok\n")
	fmt.Printf("variables:  %d\n", len(f.Variables()))
	fmt.Printf("globals:    %d\n", len(f.Globals()))

	byType := map[string]int{}
	for _, v := range f.Variables() {
		byType[v.Type.String()]++
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-9s%d\n", t, byType[t])
	}
	return nil
}
