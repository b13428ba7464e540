package descriptor

import (
	"fmt"

	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

// allEnabled forces every group open so validation sees the full tree,
// including subtrees hidden by disabled-by-default groups.
func allEnabled(*Option) bool { return true }

// Validate checks the descriptor's schema invariants:
//
//   - identity fields are present,
//   - every option node carries exactly its kind's field set,
//   - no two options in the full flattened tree share a name,
//   - every task option reference names an option that exists somewhere in
//     the full tree.
//
// Whether a referenced option is visible under the current group enablement
// is not a schema concern; the planner checks that per run.
func (r *Resource) Validate() error {
	if r.Name == "" {
		return mfwerrors.NewSchemaError("", "descriptor missing resource_name", nil)
	}

	var check func(opts []Option) error
	check = func(opts []Option) error {
		for i := range opts {
			if err := opts[i].checkKindFields(); err != nil {
				return attachResource(err, r.Name)
			}
			if err := check(opts[i].Settings); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(r.Options); err != nil {
		return err
	}

	flat, err := Flatten(r.Options, allEnabled)
	if err != nil {
		return attachResource(err, r.Name)
	}

	known := make(map[string]struct{}, len(flat))
	for _, f := range flat {
		known[f.Option.Name] = struct{}{}
	}

	for _, task := range r.Tasks {
		if task.Name == "" || task.Entry == "" {
			return mfwerrors.NewSchemaError(r.Name,
				fmt.Sprintf("task %q missing name or entry", task.Name), nil)
		}
		for _, ref := range task.OptionRefs {
			if _, ok := known[ref]; !ok {
				return mfwerrors.NewSchemaError(r.Name,
					fmt.Sprintf("task %q references undeclared option", task.Name), nil).WithOption(ref)
			}
		}
	}
	return nil
}

// attachResource fills the resource name into a SchemaError raised by
// tree-level helpers that do not know which resource they serve.
func attachResource(err error, resource string) error {
	var schemaErr *mfwerrors.SchemaError
	if mfwerrors.As(err, &schemaErr) && schemaErr.Resource == "" {
		schemaErr.Resource = resource
	}
	return err
}
