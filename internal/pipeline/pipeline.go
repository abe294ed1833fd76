// Package pipeline runs the remote registration call chain as an ordered
// list of stages. Each stage reads identifiers produced by earlier stages
// from the shared run and publishes its own. Stages are either critical
// (failure aborts the run, surfacing the first error verbatim) or
// best-effort (failure is logged and the run continues). No compensating
// rollback is performed for records created before an abort.
package pipeline

import (
	"context"
	"fmt"

	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
	"github.com/BitFund-Trading/onboarding_layer/internal/metrics"
)

// Stage is one network call in the chain.
type Stage struct {
	// Name identifies the stage in results, logs, and metrics.
	Name string

	// BestEffort marks the stage's failure as non-fatal.
	BestEffort bool

	// Run executes the stage against the shared run state.
	Run func(ctx context.Context, run *Run) error
}

// StageResult records one stage's outcome.
type StageResult struct {
	Stage      string `json:"stage"`
	OK         bool   `json:"ok"`
	BestEffort bool   `json:"best_effort,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Run carries the state threaded through a pipeline execution: values
// published by stages (created record ids, tokens) and the accumulated
// per-stage results.
type Run struct {
	values  map[string]interface{}
	Results []StageResult
}

// NewRun creates an empty run.
func NewRun() *Run {
	return &Run{values: make(map[string]interface{})}
}

// Set publishes a value for later stages.
func (r *Run) Set(key string, value interface{}) {
	r.values[key] = value
}

// Value returns a published value.
func (r *Run) Value(key string) interface{} {
	return r.values[key]
}

// StringValue returns a published string value.
func (r *Run) StringValue(key string) string {
	v, _ := r.values[key].(string)
	return v
}

// IntValue returns a published int value.
func (r *Run) IntValue(key string) int {
	switch v := r.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Succeeded reports whether every critical stage completed.
func (r *Run) Succeeded() bool {
	for _, res := range r.Results {
		if !res.OK && !res.BestEffort {
			return false
		}
	}
	return true
}

// Pipeline is a named, ordered stage chain.
type Pipeline struct {
	name    string
	stages  []Stage
	log     *logging.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline. The metrics set may be nil.
func New(name string, stages []Stage, log *logging.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = logging.Default()
	}
	return &Pipeline{name: name, stages: stages, log: log, metrics: m}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Execute runs the stages in order against run. On a critical failure the
// remaining stages are recorded as skipped and the stage's error is
// returned unchanged; best-effort failures are logged and execution
// continues. The run is returned in both cases so callers can inspect what
// was created.
func (p *Pipeline) Execute(ctx context.Context, run *Run) (*Run, error) {
	if run == nil {
		run = NewRun()
	}

	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return run, fmt.Errorf("pipeline %s canceled before stage %s: %w", p.name, stage.Name, err)
		}

		err := stage.Run(ctx, run)
		if err == nil {
			run.Results = append(run.Results, StageResult{Stage: stage.Name, OK: true, BestEffort: stage.BestEffort})
			p.record(stage.Name, "success")
			p.log.WithContext(ctx).WithFields(map[string]interface{}{
				"pipeline": p.name,
				"stage":    stage.Name,
			}).Debug("pipeline stage completed")
			continue
		}

		if stage.BestEffort {
			run.Results = append(run.Results, StageResult{Stage: stage.Name, OK: false, BestEffort: true, Error: err.Error()})
			p.record(stage.Name, "failure")
			p.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"pipeline": p.name,
				"stage":    stage.Name,
			}).Warn("best-effort pipeline stage failed, continuing")
			continue
		}

		run.Results = append(run.Results, StageResult{Stage: stage.Name, OK: false, Error: err.Error()})
		p.record(stage.Name, "failure")
		for _, skipped := range p.stages[i+1:] {
			run.Results = append(run.Results, StageResult{Stage: skipped.Name, Skipped: true, BestEffort: skipped.BestEffort})
			p.record(skipped.Name, "skipped")
		}
		if p.metrics != nil {
			p.metrics.RecordPipelineRun(p.name, "failure")
		}
		p.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"pipeline": p.name,
			"stage":    stage.Name,
		}).Error("pipeline aborted")
		return run, err
	}

	if p.metrics != nil {
		p.metrics.RecordPipelineRun(p.name, "success")
	}
	return run, nil
}

func (p *Pipeline) record(stage, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(p.name, stage, outcome)
	}
}
