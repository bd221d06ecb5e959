// Package model contains domain models passed between layers.
package model

import "time"

// Job is a queued OPR computation for one event and statistic.
type Job struct {
	ID        string
	EventCode string
	Season    int
	Statistic string
	Enqueued  time.Time
	// Reply receives exactly one Result. It must be buffered.
	Reply chan<- Result
}

// Result carries the outcome of a Job.
type Result struct {
	JobID   string
	Ratings map[int]float64
	Err     error
}

// Respond delivers r without blocking. It reports false when the reply
// channel is nil or already holds a result.
func (j *Job) Respond(r Result) bool {
	if j.Reply == nil {
		return false
	}
	r.JobID = j.ID
	select {
	case j.Reply <- r:
		return true
	default:
		return false
	}
}
