package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"skinnerbox/internal/model"
)

func TestObserveTrialCountsByType(t *testing.T) {
	module := NewModule("")
	end := 1.2
	module.ObserveTrial(model.Trial{
		TypeName: "reward",
		Start:    0,
		End:      5,
		Events: []model.EventRecord{
			{Name: "tone", PlannedStart: 1, LoggedStart: 1.001, LoggedEnd: &end},
			{Name: "pump", PlannedStart: 2, LoggedStart: 2.0},
		},
	})
	module.ObserveTrial(model.Trial{TypeName: "reward", Start: 5, End: 10})
	module.ObserveTrial(model.Trial{TypeName: "omission", Start: 10, End: 15})

	if got := testutil.ToFloat64(module.trials.WithLabelValues("reward")); got != 2 {
		t.Fatalf("reward trials counter = %g, want 2", got)
	}
	if got := testutil.ToFloat64(module.trials.WithLabelValues("omission")); got != 1 {
		t.Fatalf("omission trials counter = %g, want 1", got)
	}
	if got := testutil.ToFloat64(module.failures.WithLabelValues("pump")); got != 1 {
		t.Fatalf("pump failures counter = %g, want 1", got)
	}
	if got := testutil.ToFloat64(module.failures.WithLabelValues("tone")); got != 0 {
		t.Fatalf("tone failures counter = %g, want 0", got)
	}
}

func TestModuleWithoutAddressIsInert(t *testing.T) {
	module := NewModule("")
	ctx := context.Background()
	if err := module.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := module.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestModuleServesAndShutsDown(t *testing.T) {
	module := NewModule("127.0.0.1:0")
	ctx := context.Background()
	if err := module.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := module.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := module.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
