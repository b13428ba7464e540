package descriptor

import (
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

// FlatOption is one entry of a flattened option tree: the node plus its
// slash-separated path from the root.
type FlatOption struct {
	Path   string
	Option *Option
}

// EnabledFunc reports whether a group node is effectively enabled. Flatten
// consults it for every group it reaches; a nil func falls back to each
// group's schema default.
type EnabledFunc func(group *Option) bool

// Flatten performs a depth-first traversal of the option tree, producing
// the reachable nodes in declaration order.
//
// A group whose effective enabled state is false stays in the output (it
// still carries its own boolean value) but its descendants are skipped
// entirely and contribute no names. Flatten fails with a SchemaError
// wrapping ErrDuplicateOptionName if two reachable nodes share a name.
//
// Flatten is pure: it must be re-run whenever a group's enabled state
// changes, since that changes which names are reachable.
func Flatten(options []Option, enabled EnabledFunc) ([]FlatOption, error) {
	if enabled == nil {
		enabled = func(group *Option) bool { return group.DefaultBool }
	}

	var out []FlatOption
	seen := make(map[string]struct{})

	var walk func(opts []Option, prefix string) error
	walk = func(opts []Option, prefix string) error {
		for i := range opts {
			opt := &opts[i]
			path := opt.Name
			if prefix != "" {
				path = prefix + "/" + opt.Name
			}

			if _, dup := seen[opt.Name]; dup {
				return mfwerrors.NewSchemaError("", "duplicate option name", mfwerrors.ErrDuplicateOptionName).
					WithOption(opt.Name)
			}
			seen[opt.Name] = struct{}{}
			out = append(out, FlatOption{Path: path, Option: opt})

			if opt.Kind == KindGroup && enabled(opt) {
				if err := walk(opt.Settings, path); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(options, ""); err != nil {
		return nil, err
	}
	return out, nil
}
