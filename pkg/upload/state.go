package upload

import (
	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/intake"
)

// State is one of Idle, Uploading, Succeeded or Failed
type State interface {
	Name() string
	state()
}

// Idle waits for a submission
type Idle struct{}

// Uploading has one request in flight
type Uploading struct {
	Candidate intake.Candidate
}

// Succeeded holds the record left for the results screen
type Succeeded struct {
	Record handoff.Record
}

// Failed holds the message to show next to the submit control
type Failed struct {
	Reason string
	// Err is the underlying cause, for logs only
	Err error
}

func (Idle) Name() string      { return "idle" }
func (Uploading) Name() string { return "uploading" }
func (Succeeded) Name() string { return "succeeded" }
func (Failed) Name() string    { return "failed" }

func (Idle) state()      {}
func (Uploading) state() {}
func (Succeeded) state() {}
func (Failed) state()    {}
