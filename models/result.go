package models

import "time"

// AppResult summarises the processing of one catalog entry.
type AppResult struct {
	AppName     string
	Snapshots   int
	Stats       int
	Misses      int
	FetchErrors int
	OutputPath  string
	Skipped     bool
	Err         error
}

// RunResult holds the overall result of a run across the catalog.
type RunResult struct {
	Apps         []AppResult
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
	FailedURLs   []string
}

// SkippedApps counts apps whose index lookup failed.
func (r *RunResult) SkippedApps() int {
	n := 0
	for _, a := range r.Apps {
		if a.Skipped {
			n++
		}
	}
	return n
}

// TotalStats sums the stats collected across every app.
func (r *RunResult) TotalStats() int {
	n := 0
	for _, a := range r.Apps {
		n += a.Stats
	}
	return n
}
