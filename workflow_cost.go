package qoptim

import (
	"fmt"
	"math"
	"strings"
)

// Objective selects what a workflow optimization minimizes.
type Objective string

const (
	ObjectiveExecutionTime Objective = "execution_time"
	ObjectiveResourceUsage Objective = "resource_usage"
	ObjectiveBalanced      Objective = "balanced"
)

// ParseObjective accepts the wire names; an empty name means execution_time.
func ParseObjective(name string) (Objective, error) {
	switch o := Objective(strings.ToLower(strings.TrimSpace(name))); o {
	case "":
		return ObjectiveExecutionTime, nil
	case ObjectiveExecutionTime, ObjectiveResourceUsage, ObjectiveBalanced:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownObjective, name)
	}
}

// Constraints limit how a workflow may be executed.
type Constraints struct {
	// MaxParallel caps concurrently running steps. Zero means unlimited.
	MaxParallel int `json:"max_parallel,omitempty"`
}

/*
CostFunc returns the cost of a decoded step list under the objective. The
step order matters only when MaxParallel is set: steps are then started in
list order as slots free up.
*/
func (o Objective) CostFunc(constraints Constraints) func([]WorkflowStep) float64 {
	switch o {
	case ObjectiveResourceUsage:
		return ResourceUsage
	case ObjectiveBalanced:
		return func(steps []WorkflowStep) float64 {
			return 0.6*ExecutionTime(steps, constraints) + 0.4*ResourceUsage(steps)
		}
	default:
		return func(steps []WorkflowStep) float64 {
			return ExecutionTime(steps, constraints)
		}
	}
}

/*
ExecutionTime simulates the workflow and returns its makespan. A step starts
once every dependency has finished and, under MaxParallel, once a slot is
free. Its duration is scaled by the resources it holds.
*/
func ExecutionTime(steps []WorkflowStep, constraints Constraints) float64 {
	index := stepIndex(steps)
	finish := make([]float64, len(steps))

	var slots []float64
	if constraints.MaxParallel > 0 {
		slots = make([]float64, constraints.MaxParallel)
	}

	var makespan float64
	for _, i := range topologicalOrder(steps, identityOrder(len(steps))) {
		step := steps[i]

		var start float64
		for _, dep := range step.DependsOn {
			if j, ok := index[dep]; ok {
				start = math.Max(start, finish[j])
			}
		}

		if slots != nil {
			slot := 0
			for k := range slots {
				if slots[k] < slots[slot] {
					slot = k
				}
			}
			start = math.Max(start, slots[slot])
			finish[i] = start + effectiveDuration(step)
			slots[slot] = finish[i]
		} else {
			finish[i] = start + effectiveDuration(step)
		}

		makespan = math.Max(makespan, finish[i])
	}

	return makespan
}

// ResourceUsage is the total allocation minus the summed duration per unit of resource.
func ResourceUsage(steps []WorkflowStep) float64 {
	var total, efficiency float64
	for _, step := range steps {
		r := max(step.ResourceAllocation, 1)
		total += float64(r)
		efficiency += step.Duration / float64(r)
	}
	return total - efficiency
}

// effectiveDuration shortens a step by 10% per resource level above 3.
func effectiveDuration(step WorkflowStep) float64 {
	factor := 1 - 0.1*float64(step.ResourceAllocation-3)
	return step.Duration * math.Max(factor, 0.1)
}
