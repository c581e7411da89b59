package health

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/resource"
)

// Stage is one ordered step of a health pipeline. Stages are arranged
// cheapest first (connectivity, then performance, then
// dependency-health) so expensive checks only run when earlier ones
// pass.
type Stage struct {
	Name  string
	Check func(ctx context.Context, instance any) resource.HealthStatus
}

// Pipeline runs ordered stages with short-circuit: an Unhealthy or
// Unknown stage stops the run immediately. Degraded stages do not stop
// the run, but the highest-impact degradation wins the final verdict.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a pipeline from ordered stages
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Len returns the number of stages
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Run executes the pipeline against one instance
func (p *Pipeline) Run(ctx context.Context, instance any) resource.HealthStatus {
	worst := resource.Healthy()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return resource.Unknown(fmt.Sprintf("pipeline cancelled before stage %s", stage.Name))
		}

		status := stage.Check(ctx, instance)
		switch status.State {
		case resource.HealthUnhealthy, resource.HealthUnknown:
			// failing early stage skips later, more expensive stages
			if status.Reason == "" {
				status.Reason = fmt.Sprintf("stage %s failed", stage.Name)
			}
			return status
		case resource.HealthDegraded:
			if worst.State != resource.HealthDegraded || status.Impact > worst.Impact {
				worst = status
			}
		}
	}
	return worst
}
