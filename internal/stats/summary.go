// Package stats builds post-hoc summaries of recorded sessions: trial
// type frequencies, event timing jitter, and measurement throughput.
package stats

import (
	"math"
	"sort"

	"skinnerbox/internal/model"
)

type EventSummary struct {
	Name        string  `json:"name"`
	Occurrences int     `json:"occurrences"`
	Missing     int     `json:"missing"`
	AvgJitter   float64 `json:"avg_jitter"`
	StdJitter   float64 `json:"std_jitter"`
	MaxJitter   float64 `json:"max_jitter"`
}

type TraceSummary struct {
	Name          string  `json:"name"`
	TargetRate    float64 `json:"target_rate"`
	AchievedRate  float64 `json:"achieved_rate"`
	TotalSamples  int     `json:"total_samples"`
	TotalDuration float64 `json:"total_duration"`
}

// SessionSummary aggregates one session's trials into per-type counts,
// per-event timing jitter, and per-channel sampling throughput. Jitter
// is logged start minus planned start in seconds; events that failed to
// trigger contribute to Missing only.
type SessionSummary struct {
	SessionID   string         `json:"session_id"`
	SubjectID   string         `json:"subject_id"`
	Trials      int            `json:"trials"`
	Interrupted bool           `json:"interrupted"`
	TypeCounts  map[string]int `json:"type_counts"`
	Events      []EventSummary `json:"events"`
	Traces      []TraceSummary `json:"traces"`
}

func Summarize(session model.Session, trials []model.Trial) SessionSummary {
	summary := SessionSummary{
		SessionID:   session.ID,
		SubjectID:   session.SubjectID,
		Trials:      len(trials),
		Interrupted: session.Interrupted,
		TypeCounts:  make(map[string]int),
	}

	jitter := make(map[string][]float64)
	missing := make(map[string]int)
	occurrences := make(map[string]int)
	type traceAcc struct {
		rate     float64
		samples  int
		duration float64
	}
	traces := make(map[string]*traceAcc)

	for _, trial := range trials {
		summary.TypeCounts[trial.TypeName]++
		for _, event := range trial.Events {
			occurrences[event.Name]++
			if event.Missing() {
				missing[event.Name]++
				continue
			}
			jitter[event.Name] = append(jitter[event.Name], event.LoggedStart-event.PlannedStart)
		}
		for _, trace := range trial.Traces {
			acc, ok := traces[trace.Name]
			if !ok {
				acc = &traceAcc{rate: trace.SamplingRate}
				traces[trace.Name] = acc
			}
			acc.samples += len(trace.T)
			if n := len(trace.T); n > 1 {
				acc.duration += trace.T[n-1] - trace.T[0]
			}
		}
	}

	for name, count := range occurrences {
		avg, std := avgStd(jitter[name])
		summary.Events = append(summary.Events, EventSummary{
			Name:        name,
			Occurrences: count,
			Missing:     missing[name],
			AvgJitter:   avg,
			StdJitter:   std,
			MaxJitter:   maxOrZero(jitter[name]),
		})
	}
	sort.Slice(summary.Events, func(i, j int) bool { return summary.Events[i].Name < summary.Events[j].Name })

	for name, acc := range traces {
		achieved := 0.0
		if acc.duration > 0 {
			// One sample opens each span, so rate counts the intervals.
			achieved = float64(acc.samples-1) / acc.duration
		}
		summary.Traces = append(summary.Traces, TraceSummary{
			Name:          name,
			TargetRate:    acc.rate,
			AchievedRate:  achieved,
			TotalSamples:  acc.samples,
			TotalDuration: acc.duration,
		})
	}
	sort.Slice(summary.Traces, func(i, j int) bool { return summary.Traces[i].Name < summary.Traces[j].Name })

	return summary
}

func avgStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	avg := sum / float64(len(values))
	variance := 0.0
	for _, value := range values {
		variance += (value - avg) * (value - avg)
	}
	variance /= float64(len(values))
	return avg, math.Sqrt(variance)
}

func maxOrZero(values []float64) float64 {
	max := 0.0
	for i, value := range values {
		if i == 0 || value > max {
			max = value
		}
	}
	return max
}
