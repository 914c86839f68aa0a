package health

import (
	"context"
	"testing"

	"github.com/tmuxagentsd/daemon/internal/config"
	"github.com/tmuxagentsd/daemon/internal/store"
)

func TestOverallOfWorstStatusWins(t *testing.T) {
	cases := []struct {
		name       string
		components []Component
		want       Status
	}{
		{"all healthy", []Component{{Status: Healthy}, {Status: Healthy}}, Healthy},
		{"one degraded", []Component{{Status: Healthy}, {Status: Degraded}}, Degraded},
		{"one unhealthy wins over degraded", []Component{{Status: Degraded}, {Status: Unhealthy}}, Unhealthy},
		{"empty is healthy", nil, Healthy},
	}
	for _, c := range cases {
		if got := overallOf(c.components); got != c.want {
			t.Errorf("%s: overallOf() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCheckUnknownRuntimeTypeIsUnhealthy(t *testing.T) {
	st, err := store.Open(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	c := New(st, []config.RuntimeConfig{{ID: "weird", Type: "carrier-pigeon"}})
	rep := c.Check(context.Background())

	if rep.Overall != Unhealthy {
		t.Fatalf("Overall = %v, want unhealthy", rep.Overall)
	}
	if len(rep.Components) != 2 {
		t.Fatalf("len(Components) = %d, want 2 (store + runtime)", len(rep.Components))
	}
	found := false
	for _, comp := range rep.Components {
		if comp.Name == "runtime:weird" {
			found = true
			if comp.Status != Unhealthy {
				t.Errorf("runtime:weird status = %v, want unhealthy", comp.Status)
			}
		}
	}
	if !found {
		t.Fatal("expected a runtime:weird component in the report")
	}
}

func TestCheckStoreHealthyOnOpenStore(t *testing.T) {
	st, err := store.Open(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	c := New(st, nil)
	rep := c.Check(context.Background())

	if rep.Overall != Healthy {
		t.Fatalf("Overall = %v, want healthy", rep.Overall)
	}
	if len(rep.Components) != 1 || rep.Components[0].Name != "store" {
		t.Fatalf("Components = %v, want single store component", rep.Components)
	}
}
