// Package switchdef handles TOML switch dispatch descriptions.
//
// A definition names one switch-on-string: an ordered set of case
// constants (specific strings or the distinguished nil) with their
// targets, plus the default target taken when nothing matches.
package switchdef

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
)

// Definition represents one .switch.toml description.
type Definition struct {
	Switch  Header  `toml:"switch" cbor:"switch"`
	Cases   []Case  `toml:"case" cbor:"cases"`
	Default Default `toml:"default" cbor:"default"`

	// Path is the file the definition was loaded from (set at load time).
	Path string `toml:"-" cbor:"-"`
}

// Header contains switch metadata.
type Header struct {
	Name string `toml:"name" cbor:"name"`
}

// Case is one (constant, target) pair. Exactly one of Match or Null
// describes the constant.
type Case struct {
	Match  string `toml:"match" cbor:"match"`
	Null   bool   `toml:"null" cbor:"null"`
	Target string `toml:"target" cbor:"target"`
}

// Default names the target taken when no case matches.
type Default struct {
	Target string `toml:"target" cbor:"target"`
}

// Load parses a switch definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	d.Path = path
	return d, nil
}

// Parse decodes a switch definition from TOML bytes.
func Parse(data []byte) (*Definition, error) {
	var d Definition
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks structural invariants: at least one case, a constant and
// a target per case, a default target, and pairwise-distinct constants.
func (d *Definition) Validate() error {
	if len(d.Cases) == 0 {
		return fmt.Errorf("switchdef: no cases defined")
	}
	if d.Default.Target == "" {
		return fmt.Errorf("switchdef: default target missing")
	}

	seen := make(map[Case]int, len(d.Cases))
	for i, c := range d.Cases {
		if c.Target == "" {
			return fmt.Errorf("switchdef: case %d has no target", i)
		}
		if c.Null && c.Match != "" {
			return fmt.Errorf("switchdef: case %d sets both null and match %q", i, c.Match)
		}
		key := Case{Match: c.Match, Null: c.Null}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("switchdef: cases %d and %d share constant %s", prev, i, constantDisplay(c))
		}
		seen[key] = i
	}

	return nil
}

func constantDisplay(c Case) string {
	if c.Null {
		return "nil"
	}
	return fmt.Sprintf("%q", c.Match)
}

// cborEncMode uses canonical mode so content hashes are deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("switchdef: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ContentHash computes the SHA-256 hash of the canonical CBOR encoding of
// the definition. Two definitions with the same cases, targets, and name
// produce the same hash regardless of which file they came from.
func (d *Definition) ContentHash() ([32]byte, error) {
	data, err := cborEncMode.Marshal(d)
	if err != nil {
		return [32]byte{}, fmt.Errorf("switchdef: encode for hashing: %w", err)
	}
	return sha256.Sum256(data), nil
}
