// Package resolver produces the effective option values for one resource:
// schema defaults overlaid with a saved user configuration, restricted to
// the names visible under the resulting group enablement.
//
// Resolution is deterministic and idempotent. It never mutates the
// descriptor tree; resolving the same (tree, overlay) pair twice yields
// identical output.
package resolver

import (
	"slices"
	"strings"

	"github.com/asagiri-dev/mfwrun/internal/descriptor"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

// Overlay is a saved, partial user configuration for one resource: only the
// entries the user changed, keyed by option name. Values are the decoded
// JSON payloads (string or bool).
type Overlay map[string]any

// Resolved is the outcome of resolving one resource. It is read-only after
// Resolve returns and safe to share by reference across device lanes bound
// to the same resource.
type Resolved struct {
	resource  string
	values    map[string]descriptor.Value
	overrides map[string]map[string]any
	order     []string
	warnings  []error
}

// Resource returns the name of the resolved resource.
func (r *Resolved) Resource() string { return r.resource }

// Value returns the resolved value for a visible option name.
func (r *Resolved) Value(name string) (descriptor.Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Visible reports whether the named option is in the visible set.
func (r *Resolved) Visible(name string) bool {
	_, ok := r.values[name]
	return ok
}

// PipelineOverride returns the verbatim override payload attached to a
// visible option, or nil. The core does not interpret the payload.
func (r *Resolved) PipelineOverride(name string) map[string]any {
	return r.overrides[name]
}

// Names returns the visible option names in schema declaration order.
func (r *Resolved) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Warnings returns the recoverable override errors encountered during
// resolution (unknown names, type mismatches). The run proceeds regardless.
func (r *Resolved) Warnings() []error {
	return r.warnings
}

// Resolve computes the visible name→value map for one resource.
//
// Steps, in order: every node starts at its schema default; overlay entries
// overwrite matching nodes (unknown names and type mismatches are demoted
// to warnings and the default kept); group enabled states are evaluated
// before any child is considered reachable; the tree is re-flattened under
// that enablement to produce the visible set.
func Resolve(res *descriptor.Resource, overlay Overlay) (*Resolved, error) {
	// Full flatten first: overlay application and group evaluation consider
	// every declared node, visibility is decided afterwards.
	full, err := descriptor.Flatten(res.Options, func(*descriptor.Option) bool { return true })
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]descriptor.Value, len(full))
	for _, f := range full {
		assigned[f.Option.Name] = f.Option.DefaultValue()
	}

	out := &Resolved{
		resource:  res.Name,
		values:    make(map[string]descriptor.Value),
		overrides: make(map[string]map[string]any),
	}

	byName := make(map[string]*descriptor.Option, len(full))
	for _, f := range full {
		byName[f.Option.Name] = f.Option
	}

	// Apply the overlay in deterministic (sorted) order so warning order
	// does not depend on map iteration.
	for _, name := range sortedKeys(overlay) {
		opt, ok := byName[name]
		if !ok {
			// Schemas evolve between versions; stale saved keys are ignored
			// rather than aborting the run.
			out.warnings = append(out.warnings,
				mfwerrors.NewOverrideError(res.Name, name, mfwerrors.ErrUnknownOverride))
			continue
		}
		val, convErr := coerce(opt, overlay[name])
		if convErr != nil {
			out.warnings = append(out.warnings,
				mfwerrors.NewOverrideError(res.Name, name, convErr))
			continue
		}
		assigned[name] = val
	}

	// Group enablement reads the assigned values, so a saved toggle on a
	// group takes effect before visibility is computed.
	enabled := func(group *descriptor.Option) bool {
		return assigned[group.Name].Bool
	}

	visible, err := descriptor.Flatten(res.Options, enabled)
	if err != nil {
		return nil, err
	}

	for _, f := range visible {
		name := f.Option.Name
		out.values[name] = assigned[name]
		out.order = append(out.order, name)
		if len(f.Option.PipelineOverride) > 0 {
			out.overrides[name] = f.Option.PipelineOverride
		}
	}
	return out, nil
}

// coerce converts a decoded overlay value to the option's kind. A value of
// the wrong type is rejected with ErrOverrideTypeMismatch so the caller
// falls back to the default. Boolean options additionally accept the
// original tool's string spellings ("true"/"false", "yes"/"no", "1"/"0").
func coerce(opt *descriptor.Option, raw any) (descriptor.Value, error) {
	switch opt.Kind {
	case descriptor.KindBoolean, descriptor.KindGroup:
		switch v := raw.(type) {
		case bool:
			return descriptor.BoolValue(v), nil
		case string:
			if b, ok := parseBoolString(v); ok {
				return descriptor.BoolValue(b), nil
			}
		}
	case descriptor.KindText:
		if s, ok := raw.(string); ok {
			return descriptor.StringValue(opt.Kind, s), nil
		}
	case descriptor.KindSelect:
		s, ok := raw.(string)
		if !ok {
			break
		}
		// A saved select value must still name one of the schema's choice
		// values; otherwise the schema moved on and the default wins.
		if !opt.HasChoiceValue(s) {
			return descriptor.Value{}, mfwerrors.ErrOverrideTypeMismatch
		}
		return descriptor.StringValue(opt.Kind, s), nil
	}
	return descriptor.Value{}, mfwerrors.ErrOverrideTypeMismatch
}

func parseBoolString(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "on":
		return true, true
	case "false", "no", "n", "0", "off":
		return false, true
	}
	return false, false
}

func sortedKeys(m Overlay) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
