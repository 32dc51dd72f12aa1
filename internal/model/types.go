package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Session is the metadata for one recorded behavioral session.
type Session struct {
	VersionedRecord
	ID           string `json:"id"`
	SubjectID    string `json:"subject_id"`
	Condition    string `json:"condition,omitempty"`
	Operator     string `json:"operator,omitempty"`
	StartedAtUTC string `json:"started_at_utc"`
	Seed         int64  `json:"seed"`
	NTrials      int    `json:"n_trials"`
	Completed    int    `json:"completed"`
	Interrupted  bool   `json:"interrupted"`
}

// Trial is one completed trial occurrence. Start and End are seconds from
// session start; event and trace times are seconds from Start.
type Trial struct {
	VersionedRecord
	SessionID string        `json:"session_id"`
	Index     int           `json:"index"`
	TypeName  string        `json:"type_name"`
	Start     float64       `json:"t_start"`
	End       float64       `json:"t_end"`
	Events    []EventRecord `json:"events"`
	Traces    []Trace       `json:"traces,omitempty"`
}

// EventRecord is the observed timing of one event within a trial.
// LoggedEnd is nil when the trigger failed; the event's data for this
// trial is then missing but the trial itself stands.
type EventRecord struct {
	Name         string   `json:"name"`
	PlannedStart float64  `json:"planned_start"`
	LoggedStart  float64  `json:"logged_start"`
	LoggedEnd    *float64 `json:"logged_end,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Missing reports whether the event produced no usable end stamp.
func (e EventRecord) Missing() bool {
	return e.LoggedEnd == nil
}

// Trace is one measurement channel's sample sequence for a trial.
type Trace struct {
	Name         string    `json:"name"`
	SamplingRate float64   `json:"sampling_rate"`
	T            []float64 `json:"t"`
	V            []float64 `json:"v"`
}

// Sample is a single raw sensor reading stamped with the absolute
// wall-clock time of the read.
type Sample struct {
	At    time.Time
	Value float64
}
