package main

import (
	"fmt"
	"os"

	"ncsdis/internal/profile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = cmdInfo(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "stack":
		err = cmdStack(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `ncsdis — NWScript compiled script analyzer

Usage:
  ncsdis info   --in <file>                     Parse a script and print its structure
  ncsdis disasm --in <file> [--out <dir>]        Disassembly listing
  ncsdis graph  --in <file> --out <dir>          Call graph and CFG as DOT
  ncsdis stack  --in <file>                     Run the stack analysis pass
  ncsdis batch  --dir <dir> --out <dir>          Analyze every script in a directory

Flags:
  --in <file>        Path to a compiled .ncs script
  --dir <dir>           Input directory for batch
  --out <dir>           Output directory
  --profile <file>      Game profile TOML with engine routine signatures
  --blocks              Per-block CFG instead of the call graph
  --jobs <n>            Parallel workers for batch (default NumCPU)
  --no-cache            Ignore and do not update the batch result cache
`)
}

// loadProfileFlag loads the profile named by the flag, or the default one.
func loadProfileFlag(path string) (*profile.Profile, error) {
	if path == "" {
		return profile.Default(), nil
	}
	return profile.Load(path)
}
