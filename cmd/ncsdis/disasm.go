package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ncsdis/internal/output"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	in := fs.String("in", "", "path to a compiled script")
	out := fs.String("out", "", "output directory, stdout when empty")
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

	text := f.Listing(prof)
	if *out == "" {
		_, err := os.Stdout.WriteString(text)
		return err
	}
	return output.WriteListing(*out, scriptName(*in), text)
}

// scriptName is the input file name without its extension.
func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
