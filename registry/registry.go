package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"epsonconf/common/logger"
)

//go:embed builtin.toml
var builtinTOML []byte

// Builtin returns a fresh copy of the built-in capability table.
func Builtin() (RawTable, error) {
	table, err := DecodeTOML(builtinTOML)
	if err != nil {
		return nil, fmt.Errorf("built-in capability table: %w", err)
	}
	return table, nil
}

// ErrEmptyTable is returned when no profile survives expansion.
var ErrEmptyTable = errors.New("capability table is empty")

// Registry is an immutable set of resolved profiles. Safe for concurrent use.
type Registry struct {
	profiles map[string]*Profile
	issues   []Issue
}

// New expands and compiles a raw table.
func New(raw RawTable) (*Registry, error) {
	expanded, issues := Expand(raw)
	if len(expanded) == 0 {
		return nil, ErrEmptyTable
	}

	r := &Registry{profiles: make(map[string]*Profile, len(expanded)), issues: issues}
	for _, name := range expanded.Names() {
		p, compileIssues := compile(name, expanded[name])
		for _, issue := range compileIssues {
			logIssue(issue)
		}
		r.issues = append(r.issues, compileIssues...)
		r.profiles[name] = p
	}

	if logger.Global != nil {
		logger.Global.TraceTag("registry", "Capability registry built", "models", len(r.profiles), "issues", len(r.issues))
	}
	return r, nil
}

// NewDefault builds a registry from the built-in table with an optional
// overlay merged on top (or replacing it entirely).
func NewDefault(overlay RawTable, replace bool) (*Registry, error) {
	base, err := Builtin()
	if err != nil {
		return nil, err
	}
	if overlay != nil {
		base = Merge(base, overlay, replace)
	}
	return New(base)
}

// Resolve returns a deep copy of the named profile.
func (r *Registry) Resolve(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Names returns every model name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidPrinters returns the sorted names of profiles that carry a read key.
func (r *Registry) ValidPrinters() []string {
	var names []string
	for _, name := range r.Names() {
		if r.profiles[name].HasReadKey() {
			names = append(names, name)
		}
	}
	return names
}

// Issues returns the findings collected while building the registry.
func (r *Registry) Issues() []Issue {
	return append([]Issue(nil), r.issues...)
}

// ModelsWithKeys returns the models using readKey and, when writeKey is
// non-nil, also writeKey.
func (r *Registry) ModelsWithKeys(readKey, writeKey []byte) []string {
	var names []string
	for _, name := range r.Names() {
		p := r.profiles[name]
		if !bytes.Equal(p.ReadKey, readKey) {
			continue
		}
		if writeKey != nil && !bytes.Equal(p.WriteKey, writeKey) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// WriteKeys lists distinct known write keys, those of models sharing readKey
// first.
func (r *Registry) WriteKeys(readKey []byte) [][]byte {
	seen := make(map[string]bool)
	var preferred, rest [][]byte
	for _, name := range r.Names() {
		p := r.profiles[name]
		if !p.HasWriteKey() || seen[string(p.WriteKey)] {
			continue
		}
		seen[string(p.WriteKey)] = true
		key := append([]byte(nil), p.WriteKey...)
		if readKey != nil && bytes.Equal(p.ReadKey, readKey) {
			preferred = append(preferred, key)
		} else {
			rest = append(rest, key)
		}
	}
	return append(preferred, rest...)
}
