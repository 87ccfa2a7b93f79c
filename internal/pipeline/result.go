package pipeline

import "github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"

// Outcome classifies the result of processing one event.
type Outcome int

const (
	Success Outcome = iota
	PermanentFailure
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case PermanentFailure:
		return "permanent_failure"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Stage names the step a result was produced in.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageSegment  Stage = "segment"
	StageDedup    Stage = "dedup"
	StageEnrich   Stage = "enrich"
	StageEmbed    Stage = "embed"
	StageFlush    Stage = "flush"
	StageComplete Stage = "complete"
)

// Result is the outcome of Process. Err is nil only for Success. Units counts
// the content units found, Written those upserted by this call and Skipped
// those already present in the store.
type Result struct {
	Outcome   Outcome
	Stage     Stage
	Err       error
	Reference ingestion.DocumentReference
	Units     int
	Written   int
	Skipped   int
}
