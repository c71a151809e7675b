package pipelines

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fieldryand/goflow/v2"

	"promo-pipelines/types"
)

// Pipeline defines the interface that all pipelines must implement
type Pipeline interface {
	// Name returns the unique identifier for this pipeline
	Name() string

	// Description returns a human-readable description of the pipeline
	Description() string

	// ValidateConfig validates that all required configuration is present
	ValidateConfig() error

	// Job returns a goflow job factory function
	Job() func() *goflow.Job

	// RunOnce executes the pipeline synchronously and returns any error
	RunOnce() error

	// Report returns the counters of the last run
	Report() *types.RunReport
}

// RunOptions are the per-run choices of a caller (CLI flags or HTTP body)
type RunOptions struct {
	SheetName string // overrides the configured tab
	DryRun    bool   // write files but skip submission and stamping
}

// Factory builds a pipeline bound to a state
type Factory func(state *State, opts RunOptions) (Pipeline, error)

// Descriptor provides metadata about a pipeline for listing/discovery
type Descriptor struct {
	Name        string
	Description string
	Flags       []string // Optional flags for this pipeline
	New         Factory
}

var (
	descriptors = make(map[string]Descriptor)
	mu          sync.RWMutex
)

// RegisterDescriptor registers a pipeline descriptor for discovery
func RegisterDescriptor(d Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	descriptors[d.Name] = d
}

// GetDescriptor returns a pipeline descriptor by name
func GetDescriptor(name string) (Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := descriptors[name]
	return d, ok
}

// New builds the named pipeline
func New(name string, state *State, opts RunOptions) (Pipeline, error) {
	d, ok := GetDescriptor(name)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q", name)
	}
	if d.New == nil {
		return nil, fmt.Errorf("pipeline %q has no factory", name)
	}
	return d.New(state, opts)
}

// listNamesLocked returns sorted descriptor names. Caller must hold mu.
func listNamesLocked() []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns a sorted list of all registered pipeline descriptor names
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	return listNamesLocked()
}

// Descriptors returns all descriptors sorted by name
func Descriptors() []Descriptor {
	mu.RLock()
	defer mu.RUnlock()
	names := listNamesLocked()
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, descriptors[name])
	}
	return out
}

// ListWithDescriptions returns a formatted string of all pipelines with descriptions
func ListWithDescriptions() string {
	mu.RLock()
	defer mu.RUnlock()

	if len(descriptors) == 0 {
		return "No pipelines registered"
	}

	names := listNamesLocked()
	result := "Available pipelines:\n"
	for _, name := range names {
		d := descriptors[name]
		flagInfo := ""
		if len(d.Flags) > 0 {
			flagInfo = fmt.Sprintf(" (flags: %v)", d.Flags)
		}
		result += fmt.Sprintf("  %s - %s%s\n", name, d.Description, flagInfo)
	}
	return result
}
