package registry

import (
	"fmt"

	"epsonconf/common/logger"
)

// IssueKind classifies a registry validation finding.
type IssueKind string

const (
	IssueAliasConflict   IssueKind = "alias_conflict"
	IssueUndefinedSameAs IssueKind = "undefined_same_as"
	IssueSameAsChain     IssueKind = "same_as_chain"
	IssueMalformedField  IssueKind = "malformed_field"
)

// Issue is a non-fatal problem found while expanding or compiling a table.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Model   string    `json:"model"`
	Ref     string    `json:"ref,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Model, i.Message)
}

func logIssue(i Issue) {
	if logger.Global != nil {
		logger.Global.Warn("Capability registry issue", "kind", string(i.Kind), "model", i.Model, "ref", i.Ref, "detail", i.Message)
	}
}

// Expand resolves aliases, then same-as references, and returns a new
// table. The input is not modified. Expanding an expanded table is a no-op.
func Expand(raw RawTable) (RawTable, []Issue) {
	out := raw.Clone()
	if out == nil {
		out = RawTable{}
	}
	var issues []Issue

	// Aliases: clone the declaring profile under each alias name. Existing
	// names always win.
	for _, name := range raw.Names() {
		p := out[name]
		aliasValue, ok := p[KeyAlias]
		if !ok {
			continue
		}
		delete(p, KeyAlias)
		for _, alias := range stringList(aliasValue) {
			if _, exists := out[alias]; exists {
				issue := Issue{
					Kind:    IssueAliasConflict,
					Model:   name,
					Ref:     alias,
					Message: fmt.Sprintf("alias %q already defined; skipped", alias),
				}
				logIssue(issue)
				issues = append(issues, issue)
				continue
			}
			out[alias] = p.Clone()
		}
	}

	// Same-as: single pass over a snapshot. Chains are reported, not followed.
	snapshot := out.Clone()
	for _, name := range out.Names() {
		p := out[name]
		base, ok := sameAsRef(p)
		if !ok {
			continue
		}
		delete(p, KeySameAs)
		delete(p, keySameAsDashed)

		baseProfile, defined := snapshot[base]
		if !defined {
			issue := Issue{
				Kind:    IssueUndefinedSameAs,
				Model:   name,
				Ref:     base,
				Message: fmt.Sprintf("same_as refers to undefined model %q", base),
			}
			logIssue(issue)
			issues = append(issues, issue)
			continue
		}
		if next, chained := sameAsRef(baseProfile); chained {
			issue := Issue{
				Kind:    IssueSameAsChain,
				Model:   name,
				Ref:     base,
				Message: fmt.Sprintf("base %q itself is same_as %q; chain not followed", base, next),
			}
			logIssue(issue)
			issues = append(issues, issue)
		}

		merged := baseProfile.Clone()
		delete(merged, KeySameAs)
		delete(merged, keySameAsDashed)
		for k, v := range p {
			merged[k] = deepCopy(v)
		}
		out[name] = merged
	}

	return out, issues
}

func sameAsRef(p RawProfile) (string, bool) {
	for _, key := range []string{KeySameAs, keySameAsDashed} {
		if s, ok := p[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Merge overlays one table onto a copy of another. Nested tables merge key by
// key, alias lists concatenate and any alias that names an existing model is
// dropped. With replace set the overlay is returned alone.
func Merge(base, overlay RawTable, replace bool) RawTable {
	if replace {
		out := overlay.Clone()
		if out == nil {
			out = RawTable{}
		}
		return out
	}

	out := base.Clone()
	if out == nil {
		out = RawTable{}
	}
	for _, name := range overlay.Names() {
		op := overlay[name]
		existing, ok := out[name]
		if !ok {
			out[name] = op.Clone()
			continue
		}
		mergeInto(existing, op)
	}

	for _, name := range out.Names() {
		p := out[name]
		aliasValue, ok := p[KeyAlias]
		if !ok {
			continue
		}
		var kept []string
		for _, alias := range stringList(aliasValue) {
			if _, taken := out[alias]; taken {
				continue
			}
			kept = append(kept, alias)
		}
		if len(kept) == 0 {
			delete(p, KeyAlias)
		} else {
			p[KeyAlias] = kept
		}
	}
	return out
}

func mergeInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if k == KeyAlias {
			dst[k] = append(stringList(dst[k]), stringList(v)...)
			continue
		}
		dstMap, dstIsMap := asMap(dst[k])
		srcMap, srcIsMap := asMap(v)
		if dstIsMap && srcIsMap {
			merged := deepCopy(dstMap).(map[string]any)
			mergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		dst[k] = deepCopy(v)
	}
}
