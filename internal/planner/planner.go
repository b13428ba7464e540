// Package planner expands resource task lists into per-device execution
// plans. Each selected device is bound to one resource; the planner resolves
// that resource's option schema once, checks every task's option references
// against the visible set, and emits one plan per device. Reference failures
// are scoped to the owning resource: its devices are excluded from the run
// and every other device proceeds.
package planner

import (
	"github.com/asagiri-dev/mfwrun/internal/backend"
	"github.com/asagiri-dev/mfwrun/internal/descriptor"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
	"github.com/asagiri-dev/mfwrun/internal/resolver"
)

// Device is one device selected for a run, bound to a resource by name.
type Device struct {
	Name     string
	Resource string
	Address  string
}

// PlannedTask is one task paired with its resolved parameters. Params and
// Overrides are restricted to the option names the task declares. Both maps
// are read-only after planning and may be shared across plans for devices
// bound to the same resource.
type PlannedTask struct {
	Name      string
	Entry     string
	Params    map[string]any
	Overrides map[string]map[string]any
}

// Plan is the ordered task list one device lane executes.
type Plan struct {
	RunID    string
	Device   string
	Address  string
	Resource string
	Agent    descriptor.Agent
	WorkDir  string
	Tasks    []PlannedTask
}

// TaskSpec converts one planned task into a backend invocation spec.
func (p *Plan) TaskSpec(index int) backend.TaskSpec {
	t := p.Tasks[index]
	return backend.TaskSpec{
		RunID:     p.RunID,
		Device:    p.Device,
		Address:   p.Address,
		TaskName:  t.Name,
		Entry:     t.Entry,
		Params:    t.Params,
		Overrides: t.Overrides,
		AgentPath: p.Agent.AgentPath,
		AgentArgs: agentArgs(p.Agent),
		WorkDir:   p.WorkDir,
	}
}

func agentArgs(a descriptor.Agent) []string {
	if a.AgentParams == "" {
		return nil
	}
	return []string{a.AgentParams}
}

// Exclusion records a device dropped from the run before scheduling, with
// the per-resource error that caused it.
type Exclusion struct {
	Device   string
	Resource string
	Err      error
}

// Result is the outcome of planning one run request.
type Result struct {
	// Plans holds one entry per schedulable device, in selection order.
	Plans []*Plan

	// Excluded lists devices dropped by per-resource reference failures.
	Excluded []Exclusion

	// Warnings carries non-fatal resolver warnings (unknown or mismatched
	// overlay entries), already resource-scoped.
	Warnings []error
}

// Overlays supplies the saved option overlay for a resource. A nil function
// or a nil overlay means defaults only.
type Overlays func(resource string) resolver.Overlay

// Build produces per-device execution plans. Resolution runs once per
// distinct resource; devices sharing a resource share its resolved values by
// reference but receive independent Plan objects. Schema errors are fatal
// and abort planning; reference errors exclude only the affected resource's
// devices.
func Build(runID string, lib *descriptor.Library, devices []Device, overlays Overlays) (*Result, error) {
	result := &Result{}

	// Per-resource planning memo. A nil tasks slice with a non-nil err marks
	// a resource whose devices are all excluded.
	type planned struct {
		tasks []PlannedTask
		err   error
	}
	byResource := make(map[string]*planned)

	for _, dev := range devices {
		memo, ok := byResource[dev.Resource]
		if !ok {
			memo = &planned{}
			res, err := lib.Get(dev.Resource)
			if err != nil {
				memo.err = err
			} else {
				var overlay resolver.Overlay
				if overlays != nil {
					overlay = overlays(dev.Resource)
				}
				resolved, err := resolver.Resolve(res, overlay)
				if err != nil {
					// Schema defects abort the whole run before any device
					// starts.
					return nil, err
				}
				result.Warnings = append(result.Warnings, resolved.Warnings()...)
				memo.tasks, memo.err = planTasks(res, resolved)
			}
			byResource[dev.Resource] = memo
		}

		if memo.err != nil {
			result.Excluded = append(result.Excluded, Exclusion{
				Device:   dev.Name,
				Resource: dev.Resource,
				Err:      memo.err,
			})
			continue
		}

		res, _ := lib.Get(dev.Resource)
		result.Plans = append(result.Plans, &Plan{
			RunID:    runID,
			Device:   dev.Name,
			Address:  dev.Address,
			Resource: dev.Resource,
			Agent:    res.Agent,
			WorkDir:  res.SourceDir,
			Tasks:    memo.tasks,
		})
	}

	return result, nil
}

// planTasks builds the resource's full task list in declared order. Every
// option reference must be visible under the resolved group enablement.
func planTasks(res *descriptor.Resource, resolved *resolver.Resolved) ([]PlannedTask, error) {
	tasks := make([]PlannedTask, 0, len(res.Tasks))
	for _, t := range res.Tasks {
		params := make(map[string]any, len(t.OptionRefs))
		var overrides map[string]map[string]any
		for _, ref := range t.OptionRefs {
			v, ok := resolved.Value(ref)
			if !ok {
				return nil, mfwerrors.NewReferenceError(res.Name, t.Name, ref)
			}
			params[ref] = v.Any()
			if po := resolved.PipelineOverride(ref); po != nil {
				if overrides == nil {
					overrides = make(map[string]map[string]any)
				}
				overrides[ref] = po
			}
		}
		tasks = append(tasks, PlannedTask{
			Name:      t.Name,
			Entry:     t.Entry,
			Params:    params,
			Overrides: overrides,
		})
	}
	return tasks, nil
}
