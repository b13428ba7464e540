package descriptor

import (
	"fmt"
	"io/fs"
	"path/filepath"

	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

func dirOf(path string) string { return filepath.Dir(path) }

// Library holds every resource discovered at startup, keyed by resource
// name. It is read-only after Load returns.
type Library struct {
	resources map[string]*Resource
	order     []string
}

// Load walks the given directories for descriptor files and loads every
// resource found. A descriptor failing schema validation aborts the load:
// schema errors are fatal before any run starts.
//
// When two descriptors declare the same resource_name the later one wins,
// matching the original tool's registry behavior.
func Load(dirs []string) (*Library, error) {
	lib := &Library{resources: make(map[string]*Resource)}

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || d.Name() != DescriptorFileName {
				return nil
			}
			res, err := LoadFile(path)
			if err != nil {
				return err
			}
			lib.add(res)
			return nil
		})
		if err != nil {
			var schemaErr *mfwerrors.SchemaError
			if mfwerrors.As(err, &schemaErr) {
				return nil, err
			}
			return nil, fmt.Errorf("scanning resource directory %s: %w", dir, err)
		}
	}
	return lib, nil
}

func (l *Library) add(res *Resource) {
	if _, exists := l.resources[res.Name]; !exists {
		l.order = append(l.order, res.Name)
	}
	l.resources[res.Name] = res
}

// Get returns the named resource.
func (l *Library) Get(name string) (*Resource, error) {
	res, ok := l.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mfwerrors.ErrResourceNotFound, name)
	}
	return res, nil
}

// All returns the loaded resources in discovery order.
func (l *Library) All() []*Resource {
	out := make([]*Resource, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.resources[name])
	}
	return out
}

// Len returns the number of loaded resources.
func (l *Library) Len() int { return len(l.resources) }
