package pipelines

import (
	"strings"
	"testing"

	"github.com/fieldryand/goflow/v2"

	"promo-pipelines/types"
)

type stubPipeline struct{ name string }

func (p *stubPipeline) Name() string { return p.name }
func (p *stubPipeline) Description() string { return "stub" }
func (p *stubPipeline) ValidateConfig() error { return nil }
func (p *stubPipeline) Job() func() *goflow.Job { return nil }
func (p *stubPipeline) RunOnce() error { return nil }
func (p *stubPipeline) Report() *types.RunReport { return &types.RunReport{} }

func TestRegistry(t *testing.T) {
	RegisterDescriptor(Descriptor{
		Name:        "zz-stub",
		Description: "stub pipeline",
		Flags:       []string{"--sheet"},
		New: func(state *State, opts RunOptions) (Pipeline, error) {
			return &stubPipeline{name: "zz-stub:" + opts.SheetName}, nil
		},
	})
	RegisterDescriptor(Descriptor{Name: "zz-nofactory", Description: "listed only"})

	p, err := New("zz-stub", nil, RunOptions{SheetName: "tab"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Name() != "zz-stub:tab" {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := New("zz-nofactory", nil, RunOptions{}); err == nil {
		t.Error("New() expected error without factory")
	}
	if _, err := New("zz-missing", nil, RunOptions{}); err == nil {
		t.Error("New() expected error for unknown pipeline")
	}

	names := List()
	found := false
	for _, n := range names {
		if n == "zz-stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, missing zz-stub", names)
	}
	if !strings.Contains(ListWithDescriptions(), "zz-stub - stub pipeline (flags: [--sheet])") {
		t.Errorf("ListWithDescriptions() = %q", ListWithDescriptions())
	}
	if len(Descriptors()) != len(names) {
		t.Errorf("Descriptors() and List() disagree")
	}
}
