package qoptim

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// WorkflowStep is one schedulable unit of a workflow.
type WorkflowStep struct {
	ID                 string   `json:"id"`
	Duration           float64  `json:"duration"`
	ResourceAllocation int      `json:"resource_allocation"`
	DependsOn          []string `json:"depends_on,omitempty"`
	Priority           int      `json:"priority,omitempty"`
}

func (s WorkflowStep) clone() WorkflowStep {
	s.DependsOn = slices.Clone(s.DependsOn)
	return s
}

/*
DependencyGraph maps a step id to the ids of the steps that depend on it, the
inverse of DependsOn. Every step has an entry, possibly empty.
*/
type DependencyGraph map[string][]string

func BuildDependencyGraph(steps []WorkflowStep) DependencyGraph {
	graph := make(DependencyGraph, len(steps))
	for _, step := range steps {
		if _, ok := graph[step.ID]; !ok {
			graph[step.ID] = []string{}
		}
	}

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			graph[dep] = append(graph[dep], step.ID)
		}
	}

	return graph
}

/*
ValidateWorkflow checks a step list for everything the encoder and the cost
functions assume: at least one step, unique ids, non-negative durations,
positive resource levels, known dependencies, no self references and no
cycles. Structural problems come back as *WorkflowError; bad numbers wrap
ErrInvalidParameter.
*/
func ValidateWorkflow(steps []WorkflowStep) error {
	if len(steps) == 0 {
		return &WorkflowError{Kind: WorkflowEmpty, Msg: "no steps"}
	}

	ids := make(map[string]bool, len(steps))
	for _, step := range steps {
		if ids[step.ID] {
			return &WorkflowError{
				Kind: WorkflowDuplicateID,
				Msg:  fmt.Sprintf("duplicate step id: %q", step.ID),
			}
		}
		ids[step.ID] = true

		if step.Duration < 0 || math.IsNaN(step.Duration) {
			return invalidParam("step %q has duration %g", step.ID, step.Duration)
		}
		if step.ResourceAllocation < 1 {
			return invalidParam("step %q has resource allocation %d", step.ID, step.ResourceAllocation)
		}
	}

	adjacency := make(map[string][]string, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return &WorkflowError{
					Kind: WorkflowSelfReference,
					Msg:  fmt.Sprintf("step %q depends on itself", step.ID),
				}
			}
			if !ids[dep] {
				return &WorkflowError{
					Kind: WorkflowUnknownDependency,
					Msg:  fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep),
				}
			}
			adjacency[step.ID] = append(adjacency[step.ID], dep)
		}
	}

	// 0 = unvisited, 1 = on the current path, 2 = done
	color := make(map[string]int, len(steps))
	var path []string

	var dfs func(id string) error
	dfs = func(id string) error {
		color[id] = 1
		path = append(path, id)

		next := slices.Clone(adjacency[id])
		sort.Strings(next)

		for _, dep := range next {
			switch color[dep] {
			case 1:
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				return &WorkflowError{
					Kind: WorkflowCycle,
					Msg:  fmt.Sprintf("cycle detected: %v", cycle),
				}
			case 0:
				if err := dfs(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = 2
		return nil
	}

	all := make([]string, 0, len(ids))
	for id := range ids {
		all = append(all, id)
	}
	sort.Strings(all)

	for _, id := range all {
		if color[id] == 0 {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// StepTiming is the forward/backward pass result for one step.
type StepTiming struct {
	EarliestStart  float64 `json:"earliest_start"`
	EarliestFinish float64 `json:"earliest_finish"`
	LatestStart    float64 `json:"latest_start"`
	LatestFinish   float64 `json:"latest_finish"`
	Slack          float64 `json:"slack"`
}

/*
ScheduleTimes runs the classic critical-path forward and backward passes with
unlimited parallelism. Durations are the resource-adjusted durations the
execution_time objective uses.
*/
func ScheduleTimes(steps []WorkflowStep) (map[string]StepTiming, error) {
	if err := ValidateWorkflow(steps); err != nil {
		return nil, err
	}

	order := topologicalOrder(steps, identityOrder(len(steps)))
	graph := BuildDependencyGraph(steps)
	timings := make(map[string]StepTiming, len(steps))

	var makespan float64
	for _, i := range order {
		step := steps[i]
		var start float64
		for _, dep := range step.DependsOn {
			start = math.Max(start, timings[dep].EarliestFinish)
		}
		finish := start + effectiveDuration(step)
		timings[step.ID] = StepTiming{EarliestStart: start, EarliestFinish: finish}
		makespan = math.Max(makespan, finish)
	}

	for k := len(order) - 1; k >= 0; k-- {
		step := steps[order[k]]
		latestFinish := makespan
		for _, dependent := range graph[step.ID] {
			latestFinish = math.Min(latestFinish, timings[dependent].LatestStart)
		}

		t := timings[step.ID]
		t.LatestFinish = latestFinish
		t.LatestStart = latestFinish - effectiveDuration(step)
		t.Slack = t.LatestStart - t.EarliestStart
		timings[step.ID] = t
	}

	return timings, nil
}

/*
CriticalPath returns the longest dependency chain, first step first. It walks
back from the step that finishes last, at each hop taking the first dependency
whose finish gates the current step's start.
*/
func CriticalPath(steps []WorkflowStep) ([]string, error) {
	timings, err := ScheduleTimes(steps)
	if err != nil {
		return nil, err
	}

	index := stepIndex(steps)

	last := steps[0].ID
	for _, step := range steps[1:] {
		if timings[step.ID].EarliestFinish > timings[last].EarliestFinish {
			last = step.ID
		}
	}

	path := []string{last}
	for current := last; ; {
		start := timings[current].EarliestStart
		next := ""
		for _, dep := range steps[index[current]].DependsOn {
			if math.Abs(timings[dep].EarliestFinish-start) < 1e-9 {
				next = dep
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		current = next
	}

	slices.Reverse(path)
	return path, nil
}

func stepIndex(steps []WorkflowStep) map[string]int {
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		index[step.ID] = i
	}
	return index
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

/*
topologicalOrder repairs a proposed order of step indices into one that
respects dependencies, changing as little as it can: at every position it
places the earliest proposed step whose dependencies are already placed.
Steps stuck behind a cycle or an unknown dependency are appended in proposed
order so the result is always a permutation.
*/
func topologicalOrder(steps []WorkflowStep, proposed []int) []int {
	index := stepIndex(steps)
	placed := make([]bool, len(steps))
	out := make([]int, 0, len(steps))

	ready := func(i int) bool {
		for _, dep := range steps[i].DependsOn {
			if j, ok := index[dep]; ok && !placed[j] {
				return false
			}
		}
		return true
	}

	for len(out) < len(steps) {
		progressed := false
		for _, i := range proposed {
			if !placed[i] && ready(i) {
				placed[i] = true
				out = append(out, i)
				progressed = true
				break
			}
		}
		if !progressed {
			for _, i := range proposed {
				if !placed[i] {
					placed[i] = true
					out = append(out, i)
				}
			}
		}
	}

	return out
}
