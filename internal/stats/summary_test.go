package stats

import (
	"math"
	"testing"

	"skinnerbox/internal/model"
)

func rec(name string, planned, logged float64, ok bool) model.EventRecord {
	r := model.EventRecord{Name: name, PlannedStart: planned, LoggedStart: logged}
	if ok {
		end := logged + 0.5
		r.LoggedEnd = &end
	}
	return r
}

func TestSummarizeCountsTypesAndEvents(t *testing.T) {
	session := model.Session{ID: "s1", SubjectID: "m042", Interrupted: true}
	trials := []model.Trial{
		{TypeName: "reward", Events: []model.EventRecord{rec("tone", 1.0, 1.002, true)}},
		{TypeName: "reward", Events: []model.EventRecord{rec("tone", 1.5, 1.504, true)}},
		{TypeName: "omission", Events: []model.EventRecord{rec("tone", 2.0, 2.1, false)}},
	}

	summary := Summarize(session, trials)
	if summary.Trials != 3 || !summary.Interrupted {
		t.Fatalf("unexpected header: %+v", summary)
	}
	if summary.TypeCounts["reward"] != 2 || summary.TypeCounts["omission"] != 1 {
		t.Fatalf("unexpected type counts: %v", summary.TypeCounts)
	}
	if len(summary.Events) != 1 {
		t.Fatalf("expected one event summary, got %+v", summary.Events)
	}
	tone := summary.Events[0]
	if tone.Occurrences != 3 || tone.Missing != 1 {
		t.Fatalf("unexpected tone counts: %+v", tone)
	}
	wantAvg := (0.002 + 0.004) / 2
	if math.Abs(tone.AvgJitter-wantAvg) > 1e-9 {
		t.Fatalf("avg jitter %.6f, want %.6f", tone.AvgJitter, wantAvg)
	}
	if math.Abs(tone.MaxJitter-0.004) > 1e-9 {
		t.Fatalf("max jitter %.6f, want 0.004", tone.MaxJitter)
	}
}

func TestSummarizeMissingEventsExcludedFromJitter(t *testing.T) {
	trials := []model.Trial{
		{TypeName: "a", Events: []model.EventRecord{rec("pump", 1.0, 9.0, false)}},
	}
	summary := Summarize(model.Session{ID: "s1"}, trials)
	pump := summary.Events[0]
	if pump.Missing != 1 {
		t.Fatalf("expected one missing pump, got %+v", pump)
	}
	if pump.AvgJitter != 0 || pump.MaxJitter != 0 {
		t.Fatalf("missing event leaked into jitter: %+v", pump)
	}
}

func TestSummarizeTraceThroughput(t *testing.T) {
	trace := model.Trace{Name: "licks", SamplingRate: 100}
	for i := 0; i < 101; i++ {
		trace.T = append(trace.T, float64(i)*0.01)
		trace.V = append(trace.V, 0)
	}
	summary := Summarize(model.Session{ID: "s1"}, []model.Trial{{TypeName: "a", Traces: []model.Trace{trace}}})
	if len(summary.Traces) != 1 {
		t.Fatalf("expected one trace summary, got %+v", summary.Traces)
	}
	licks := summary.Traces[0]
	if licks.TotalSamples != 101 {
		t.Fatalf("total samples %d, want 101", licks.TotalSamples)
	}
	if math.Abs(licks.AchievedRate-100) > 1e-6 {
		t.Fatalf("achieved rate %.4f, want 100", licks.AchievedRate)
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	summary := Summarize(model.Session{ID: "s1"}, nil)
	if summary.Trials != 0 || len(summary.Events) != 0 || len(summary.Traces) != 0 {
		t.Fatalf("unexpected summary for empty session: %+v", summary)
	}
}

func TestAvgStd(t *testing.T) {
	avg, std := avgStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(avg-5) > 1e-9 {
		t.Fatalf("avg %.4f, want 5", avg)
	}
	if math.Abs(std-2) > 1e-9 {
		t.Fatalf("std %.4f, want 2", std)
	}
	avg, std = avgStd(nil)
	if avg != 0 || std != 0 {
		t.Fatalf("empty input should yield zeros, got %.4f/%.4f", avg, std)
	}
}
