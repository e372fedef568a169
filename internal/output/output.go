// Package output writes script analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ncsdis/internal/ncs"
)

// Summary is the per-script analysis digest written to summary.json.
type Summary struct {
	File         string   `json:"file"`
	Size         uint32   `json:"size"`
	Instructions int      `json:"instructions"`
	Blocks       int      `json:"blocks"`
	SubRoutines  int      `json:"subroutines"`
	Start        string   `json:"start,omitempty"`
	Global       string   `json:"global,omitempty"`
	Main         string   `json:"main,omitempty"`
	StackOK      bool     `json:"stack_ok"`
	Variables    int      `json:"variables,omitempty"`
	Globals      int      `json:"globals,omitempty"`
	Diags        []string `json:"diags,omitempty"`
}

// Summarize builds a Summary from a parsed script.
func Summarize(name string, f *ncs.File) *Summary {
	s := &Summary{
		File:         name,
		Size:         f.Size(),
		Instructions: len(f.Instructions()),
		Blocks:       len(f.Blocks()),
		SubRoutines:  len(f.SubRoutines()),
		StackOK:      f.HasStackAnalysis(),
		Variables:    len(f.Variables()),
		Globals:      len(f.Globals()),
	}
	if sub := f.StartSubRoutine(); sub != nil {
		s.Start = sub.Name()
	}
	if sub := f.GlobalSubRoutine(); sub != nil {
		s.Global = sub.Name()
	}
	if sub := f.MainSubRoutine(); sub != nil {
		s.Main = sub.Name()
	}
	for _, d := range f.Diags() {
		s.Diags = append(s.Diags, d.String())
	}
	return s
}

// WriteSummaryJSON writes the analysis digest to summary.json.
func WriteSummaryJSON(dir string, s *Summary) error {
	return writeJSON(filepath.Join(dir, "summary.json"), s)
}

// WriteListing writes the disassembly listing to <name>.txt.
func WriteListing(dir, name, text string) error {
	path := filepath.Join(dir, name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// WriteDOT writes a rendered graph to <name>.dot.
func WriteDOT(dir, name, dot string) error {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	return os.WriteFile(path, []byte(dot), 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
