package ivr

import "fmt"

// WaitBucket is the enumerated estimated-wait answer.
type WaitBucket int

const (
	WaitUnknown WaitBucket = iota
	WaitUnderMinute
	WaitMinutes
	WaitOverThreshold
)

// WaitEstimate pairs a bucket with the minute count for the bucketed cases.
type WaitEstimate struct {
	Bucket  WaitBucket
	Minutes int
}

// WaitEstimator supplies the estimated wait for a queue. There is no wired
// data source; implementations returning WaitUnknown cause the announcement
// to be skipped.
type WaitEstimator interface {
	EstimatedWait(queueSid string) WaitEstimate
}

// PositionBucket is the enumerated queue-position answer.
type PositionBucket int

const (
	PositionUnknown PositionBucket = iota
	PositionNext
	PositionOneAhead
	PositionAhead
	PositionOverflow
)

// PositionEstimate pairs a bucket with the caller count for the bucketed
// cases.
type PositionEstimate struct {
	Bucket  PositionBucket
	Callers int
}

// PositionEstimator supplies a task's position in queue. As with
// WaitEstimator, no data source is wired in.
type PositionEstimator interface {
	QueuePosition(taskSid string) PositionEstimate
}

// UnresolvedWait is the shipped WaitEstimator: always unknown.
type UnresolvedWait struct{}

func (UnresolvedWait) EstimatedWait(string) WaitEstimate { return WaitEstimate{} }

// UnresolvedPosition is the shipped PositionEstimator: always unknown.
type UnresolvedPosition struct{}

func (UnresolvedPosition) QueuePosition(string) PositionEstimate { return PositionEstimate{} }

func waitAnnouncement(est WaitEstimate) string {
	var tts string
	switch est.Bucket {
	case WaitUnderMinute:
		tts = "less than a minute..."
	case WaitMinutes:
		tts = fmt.Sprintf("less than %d  minutes...", est.Minutes+1)
	case WaitOverThreshold:
		tts = fmt.Sprintf("more than %d minutes...", est.Minutes)
	default:
		return ""
	}
	return fmt.Sprintf("The estimated wait time is %s ....", tts)
}

func positionAnnouncement(est PositionEstimate) string {
	switch est.Bucket {
	case PositionNext:
		return "Your call is next in queue.... "
	case PositionOneAhead:
		return "There is one caller ahead of you..."
	case PositionAhead:
		return fmt.Sprintf("There are %d callers ahead of you...", est.Callers)
	case PositionOverflow:
		return fmt.Sprintf("There are more than %d callers ahead of you...", est.Callers)
	default:
		return ""
	}
}
