package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakePrimary struct {
	mu      sync.Mutex
	results map[int64]map[string]string
	errs    map[int64]error
	calls   []int64
}

func (f *fakePrimary) ChannelProductIDs(_ context.Context, id int64) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.results[id], nil
}

type fakeSecondary struct {
	results map[int64]map[string]string
	err     error
	asked   []int64
}

func (f *fakeSecondary) Scrape(_ context.Context, ids []int64) (map[int64]map[string]string, error) {
	f.asked = append(f.asked, ids...)
	return f.results, f.err
}

func TestChannelLookup_PrimaryOnly(t *testing.T) {
	primary := &fakePrimary{results: map[int64]map[string]string{
		1: {"SSG": "100"},
		2: {"쿠팡": "200"},
	}}
	lookup := NewChannelLookup(primary, nil, 0)

	got := lookup.Query(context.Background(), []int64{2, 1, 2})
	if len(primary.calls) != 2 {
		t.Errorf("primary calls = %v, want one per distinct id", primary.calls)
	}
	if got[1]["SSG"] != "100" || got[2]["쿠팡"] != "200" {
		t.Errorf("Query() = %v", got)
	}
}

func TestChannelLookup_FallbackOnlyForEmpty(t *testing.T) {
	primary := &fakePrimary{
		results: map[int64]map[string]string{1: {"SSG": "100"}, 2: {}},
		errs:    map[int64]error{3: errors.New("timeout")},
	}
	secondary := &fakeSecondary{results: map[int64]map[string]string{
		1: {"SSG": "999"},
		2: {"11번가": "222"},
		3: {},
	}}
	lookup := NewChannelLookup(primary, secondary, 0)

	got := lookup.Query(context.Background(), []int64{1, 2, 3})

	if len(secondary.asked) != 2 || secondary.asked[0] != 2 || secondary.asked[1] != 3 {
		t.Errorf("secondary asked = %v, want [2 3]", secondary.asked)
	}
	if got[1]["SSG"] != "100" {
		t.Errorf("primary result overwritten: %v", got[1])
	}
	if got[2]["11번가"] != "222" {
		t.Errorf("secondary result not merged: %v", got[2])
	}
	m, ok := got[3]
	if !ok || m == nil || len(m) != 0 {
		t.Errorf("failed id = %v (present %v), want empty map", m, ok)
	}
}

func TestChannelLookup_SecondaryError(t *testing.T) {
	primary := &fakePrimary{results: map[int64]map[string]string{1: {"SSG": "100"}}}
	secondary := &fakeSecondary{err: errors.New("login failed")}
	lookup := NewChannelLookup(primary, secondary, 0)

	got := lookup.Query(context.Background(), []int64{1, 2})
	if len(got) != 2 {
		t.Fatalf("Query() returned %d ids, want 2", len(got))
	}
	if got[1]["SSG"] != "100" {
		t.Errorf("Query()[1] = %v", got[1])
	}
	if len(got[2]) != 0 {
		t.Errorf("Query()[2] = %v, want empty", got[2])
	}
}

func TestChannelLookup_Cancelled(t *testing.T) {
	primary := &fakePrimary{results: map[int64]map[string]string{1: {"SSG": "100"}}}
	lookup := NewChannelLookup(primary, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := lookup.Query(ctx, []int64{1})
	if _, ok := got[1]; !ok {
		t.Error("Query() dropped id on cancelled context")
	}
}
