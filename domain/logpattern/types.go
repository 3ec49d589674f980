package logpattern

import (
	"time"
)

// LogPattern is a log template with its occurrence statistics. Base,
// Selection and Lift are only present in pattern-difference results.
type LogPattern struct {
	Pattern    string   `json:"pattern"`
	Count      int      `json:"count"`
	SampleLogs []string `json:"sampleLogs,omitempty"`
	Base       *float64 `json:"base,omitempty"`
	Selection  *float64 `json:"selection,omitempty"`
	Lift       *float64 `json:"lift,omitempty"`
}

// HasLift reports whether the pattern carries a defined, non-zero lift
func (p LogPattern) HasLift() bool {
	return p.Lift != nil && *p.Lift != 0
}

// SelectionValue returns the selection score or zero when absent
func (p LogPattern) SelectionValue() float64 {
	if p.Selection == nil {
		return 0
	}
	return *p.Selection
}

// AnalyzeRequest is the body posted to the log pattern backend
type AnalyzeRequest struct {
	SelectionStartTime time.Time  `json:"selectionStartTime"`
	SelectionEndTime   time.Time  `json:"selectionEndTime"`
	BaselineStartTime  *time.Time `json:"baselineStartTime,omitempty"`
	BaselineEndTime    *time.Time `json:"baselineEndTime,omitempty"`
	TimeField          string     `json:"timeField"`
	LogMessageField    string     `json:"logMessageField"`
	TraceIDField       string     `json:"traceIdField,omitempty"`
	IndexName          string     `json:"indexName"`
	DataSourceID       string     `json:"dataSourceId,omitempty"`
}

// HasBaseline reports whether both baseline bounds are set
func (r AnalyzeRequest) HasBaseline() bool {
	return r.BaselineStartTime != nil && r.BaselineEndTime != nil
}

// HasTraceField reports whether sequence analysis can run
func (r AnalyzeRequest) HasTraceField() bool {
	return r.TraceIDField != ""
}

// AnalyzeResponse is what the backend returns; any part may be empty
// depending on which inputs were supplied.
type AnalyzeResponse struct {
	LogInsights          []LogPattern        `json:"logInsights"`
	PatternMapDifference []LogPattern        `json:"patternMapDifference"`
	Exceptional          map[string][]string `json:"EXCEPTIONAL"`
	Base                 map[string][]string `json:"BASE"`
}

// StepStatus records how one sub-request ended
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepRecord is one entry of the completed-steps log
type StepRecord struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// AnalysisResult is the persisted, ranked output of a log pattern run
type AnalysisResult struct {
	LogInsights          []LogPattern        `json:"logInsights"`
	PatternMapDifference []LogPattern        `json:"patternMapDifference"`
	Exceptional          map[string][]string `json:"EXCEPTIONAL,omitempty"`
	Base                 map[string][]string `json:"BASE,omitempty"`
	Steps                []StepRecord        `json:"steps"`
}

// Failed reports whether any step failed
func (r AnalysisResult) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}
