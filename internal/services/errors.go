// internal/services/errors.go
package services

import "fmt"

type Stage string

const (
	StageConfig        Stage = "config"
	StageParse         Stage = "parse"
	StageNormalize     Stage = "normalize"
	StageDatabaseWrite Stage = "database write"
	StageIndexWrite    Stage = "index write"
	StageEnrichment    Stage = "enrichment"
)

// StageError tags a run failure with the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
