// Package ncsfmt provides shared stream plumbing and diagnostics for NCS parsing.
package ncsfmt

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagUnreachable     DiagKind = "unreachable_block"
	DiagAmbiguousGlobal DiagKind = "ambiguous_global"
	DiagStackAnalysis   DiagKind = "stack_analysis"
)

// Diag records a non-fatal finding from CFG construction or analysis.
type Diag struct {
	Address uint32   `json:"address"`
	Kind    DiagKind `json:"kind"`
	Msg     string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] %08x: %s", d.Kind, d.Address, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(address uint32, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Address: address, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(address uint32, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Address: address, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }
