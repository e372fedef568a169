// Package profile describes per-game engine routine signatures used by the
// stack analysis and listing passes.
package profile

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"

	"ncsdis/internal/ncs"
)

// Action is one engine routine signature.
type Action struct {
	Name    string `toml:"name"`
	Returns string `toml:"returns"` // void, int, float, string, object, vector, engine0..engine5, any
}

// Profile maps engine routine ids to their signatures for one game.
type Profile struct {
	Game    string            `toml:"game"`
	Actions map[string]Action `toml:"actions"` // keyed by decimal routine id
}

var _ ncs.ActionTable = (*Profile)(nil)

// Default returns an empty profile: every routine is unnamed and assumed to
// push a single untyped cell.
func Default() *Profile {
	return &Profile{Actions: map[string]Action{}}
}

// Load reads a game profile from a TOML file.
func Load(path string) (*Profile, error) {
	p := Default()
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, fmt.Errorf("profile: %s: %w", path, err)
	}
	return p, nil
}

// ActionName returns the routine's name, or "" when the profile does not
// know it.
func (p *Profile) ActionName(id int32) string {
	return p.Actions[strconv.Itoa(int(id))].Name
}

// ActionReturn returns the cells the routine pushes. Unknown routines default
// to one untyped cell.
func (p *Profile) ActionReturn(id int32) []ncs.VarType {
	a, ok := p.Actions[strconv.Itoa(int(id))]
	if !ok {
		return []ncs.VarType{ncs.VarTypeAny}
	}
	switch a.Returns {
	case "void":
		return nil
	case "int":
		return []ncs.VarType{ncs.VarTypeInt}
	case "float":
		return []ncs.VarType{ncs.VarTypeFloat}
	case "string":
		return []ncs.VarType{ncs.VarTypeString}
	case "object":
		return []ncs.VarType{ncs.VarTypeObject}
	case "vector":
		return []ncs.VarType{ncs.VarTypeFloat, ncs.VarTypeFloat, ncs.VarTypeFloat}
	case "engine0", "engine1", "engine2", "engine3", "engine4", "engine5":
		n := a.Returns[len(a.Returns)-1] - '0'
		return []ncs.VarType{ncs.VarTypeEngine0 + ncs.VarType(n)}
	}
	return []ncs.VarType{ncs.VarTypeAny}
}
