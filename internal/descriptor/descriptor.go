// Package descriptor models automation resource descriptors: the identity,
// agent spec, task list, and recursive option schema loaded from a resource
// directory's resource_config.json. The option tree is a tagged-variant
// structure (select, boolean, text, group); kind-specific fields are
// enforced when a node is constructed or parsed, not when it is used.
//
// Note on spelling: the wire format spells the boolean kind "boole" and the
// text kind "input". Both are parsed as-is and treated as ordinary boolean
// and string semantics.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"

	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

// DescriptorFileName is the file each resource directory must contain.
const DescriptorFileName = "resource_config.json"

// Kind discriminates option node variants. The constant values are the wire
// spellings used by the descriptor format.
type Kind string

const (
	KindSelect  Kind = "select"
	KindBoolean Kind = "boole"
	KindText    Kind = "input"
	KindGroup   Kind = "settings_group"
)

// String returns the wire spelling of the kind.
func (k Kind) String() string { return string(k) }

// Choice is one selectable entry of a select option.
type Choice struct {
	Name  string `json:"name"`  // display label
	Value string `json:"value"` // stored value
}

// Option is one node of the option tree. Exactly the fields belonging to
// its Kind are meaningful; use the New* constructors to build nodes
// programmatically so the kind invariants hold.
type Option struct {
	Name string
	Kind Kind
	Doc  string

	// PipelineOverride is an advanced raw payload forwarded verbatim to the
	// automation backend. The core only tracks presence and visibility.
	PipelineOverride map[string]any

	// Choices is set for select options. The select default must equal the
	// Value of exactly one choice.
	Choices []Choice

	// DefaultText holds the default for select and text options.
	DefaultText string

	// DefaultBool holds the default for boolean options and the default
	// enabled state for groups.
	DefaultBool bool

	// Settings holds a group's child options, in declared order.
	Settings []Option
}

// NewSelect constructs a select option. The default must equal the value of
// one of the choices.
func NewSelect(name, def string, choices []Choice) (Option, error) {
	opt := Option{Name: name, Kind: KindSelect, DefaultText: def, Choices: choices}
	if err := opt.checkKindFields(); err != nil {
		return Option{}, err
	}
	return opt, nil
}

// NewBoolean constructs a boolean option.
func NewBoolean(name string, def bool) Option {
	return Option{Name: name, Kind: KindBoolean, DefaultBool: def}
}

// NewText constructs a free-form text option.
func NewText(name, def string) Option {
	return Option{Name: name, Kind: KindText, DefaultText: def}
}

// NewGroup constructs a settings group with the given enabled default and
// child options.
func NewGroup(name string, enabled bool, settings ...Option) Option {
	return Option{Name: name, Kind: KindGroup, DefaultBool: enabled, Settings: settings}
}

// DefaultValue returns the option's schema default as a typed Value.
func (o *Option) DefaultValue() Value {
	switch o.Kind {
	case KindBoolean, KindGroup:
		return BoolValue(o.DefaultBool)
	default:
		return StringValue(o.Kind, o.DefaultText)
	}
}

// HasChoiceValue reports whether v equals the value of one of a select
// option's choices.
func (o *Option) HasChoiceValue(v string) bool {
	for _, c := range o.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// checkKindFields validates the kind-specific field set of a single node.
func (o *Option) checkKindFields() error {
	if o.Name == "" {
		return mfwerrors.NewSchemaError("", "option missing name", nil)
	}
	switch o.Kind {
	case KindSelect:
		if len(o.Choices) == 0 {
			return mfwerrors.NewSchemaError("", "select option has no choices", nil).WithOption(o.Name)
		}
		for _, c := range o.Choices {
			if c.Value == "" {
				return mfwerrors.NewSchemaError("", "select choice missing value", nil).WithOption(o.Name)
			}
		}
		if !o.HasChoiceValue(o.DefaultText) {
			return mfwerrors.NewSchemaError("",
				fmt.Sprintf("select default %q does not match any choice value", o.DefaultText), nil).
				WithOption(o.Name)
		}
	case KindBoolean, KindText:
		if len(o.Settings) != 0 || len(o.Choices) != 0 {
			return mfwerrors.NewSchemaError("", "non-group option carries nested fields", nil).WithOption(o.Name)
		}
	case KindGroup:
		if len(o.Choices) != 0 {
			return mfwerrors.NewSchemaError("", "group option carries choices", nil).WithOption(o.Name)
		}
	default:
		return mfwerrors.NewSchemaError("", fmt.Sprintf("unknown option type %q", o.Kind), nil).WithOption(o.Name)
	}
	return nil
}

// rawOption is the wire shape of an option node.
type rawOption struct {
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Doc              string          `json:"doc"`
	Description      string          `json:"description"`
	Default          json.RawMessage `json:"default"`
	PipelineOverride map[string]any  `json:"pipeline_override"`
	Choices          []Choice        `json:"choices"`
	Settings         []rawOption     `json:"settings"`
}

// UnmarshalJSON parses an option node, discriminating on the "type" field
// and typing the default per kind.
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw rawOption
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := optionFromRaw(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func optionFromRaw(raw rawOption) (Option, error) {
	opt := Option{
		Name:             raw.Name,
		Kind:             Kind(raw.Type),
		Doc:              raw.Doc,
		PipelineOverride: raw.PipelineOverride,
	}
	if opt.Doc == "" {
		opt.Doc = raw.Description
	}

	switch opt.Kind {
	case KindSelect, KindText:
		if len(raw.Default) > 0 {
			if err := json.Unmarshal(raw.Default, &opt.DefaultText); err != nil {
				return Option{}, mfwerrors.NewSchemaError("",
					fmt.Sprintf("default for %s option is not a string", opt.Kind), err).WithOption(raw.Name)
			}
		}
		opt.Choices = raw.Choices
	case KindBoolean, KindGroup:
		// Groups default to enabled when no default is given.
		opt.DefaultBool = opt.Kind == KindGroup
		if len(raw.Default) > 0 {
			if err := json.Unmarshal(raw.Default, &opt.DefaultBool); err != nil {
				return Option{}, mfwerrors.NewSchemaError("",
					fmt.Sprintf("default for %s option is not a bool", opt.Kind), err).WithOption(raw.Name)
			}
		}
		for _, rawChild := range raw.Settings {
			child, err := optionFromRaw(rawChild)
			if err != nil {
				return Option{}, err
			}
			opt.Settings = append(opt.Settings, child)
		}
	}

	if err := opt.checkKindFields(); err != nil {
		return Option{}, err
	}
	return opt, nil
}

// Task is one entry of a resource's task list. Entry is an opaque
// identifier consumed by the automation backend, format "<unit>:<function>".
type Task struct {
	Name       string   `json:"task_name"`
	Entry      string   `json:"task_entry"`
	OptionRefs []string `json:"option"`
}

// Agent carries the resource's runtime requirements. The core forwards it
// to the backend without interpreting it.
type Agent struct {
	Type             string `json:"type"`
	Version          string `json:"version"`
	AgentPath        string `json:"agent_path"`
	AgentParams      string `json:"agent_params"`
	RequirementsPath string `json:"requirements_path"`
	UseVenv          bool   `json:"use_venv"`
}

// PackEntry is one resource-pack source/destination pair. The core carries
// it as opaque metadata.
type PackEntry map[string]any

// Resource is one loaded resource descriptor. It is immutable for the
// lifetime of a run once loaded.
type Resource struct {
	Name                  string      `json:"resource_name"`
	ID                    string      `json:"resource_id"`
	Version               string      `json:"resource_version"`
	Author                string      `json:"resource_author"`
	Description           string      `json:"resource_description"`
	MirrorUpdateServiceID string      `json:"mirror_update_service_id"`
	RepURL                string      `json:"resource_rep_url"`
	Icon                  string      `json:"resource_icon"`
	Agent                 Agent       `json:"agent"`
	ResourcePack          []PackEntry `json:"resource_pack"`
	Tasks                 []Task      `json:"resource_tasks"`
	Options               []Option    `json:"options"`

	// SourceDir is the directory the descriptor was loaded from. It is not
	// part of the wire format.
	SourceDir string `json:"-"`
}

// ParseResource parses a descriptor from raw JSON and validates it.
func ParseResource(data []byte) (*Resource, error) {
	var res Resource
	if err := json.Unmarshal(data, &res); err != nil {
		// Surface schema errors from option parsing directly; wrap anything
		// else as a malformed-descriptor schema error.
		var schemaErr *mfwerrors.SchemaError
		if mfwerrors.As(err, &schemaErr) {
			return nil, err
		}
		return nil, mfwerrors.NewSchemaError("", "malformed descriptor", err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// LoadFile loads and validates a descriptor file, recording its directory.
func LoadFile(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %s: %w", path, err)
	}
	res, err := ParseResource(data)
	if err != nil {
		return nil, err
	}
	res.SourceDir = dirOf(path)
	return res, nil
}

// Task returns the named task, or nil if the resource does not declare it.
func (r *Resource) Task(name string) *Task {
	for i := range r.Tasks {
		if r.Tasks[i].Name == name {
			return &r.Tasks[i]
		}
	}
	return nil
}
