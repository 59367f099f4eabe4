package swarm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Rand is the random source a virtual user draws from. *gofakeit.Faker and
// *rand.Rand from math/rand/v2 both satisfy it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Task is one weighted unit of shopper behavior.
type Task struct {
	Name   string
	Weight int
	Run    func(ctx context.Context) error
}

// TaskSet selects tasks at random in proportion to their weights.
type TaskSet struct {
	tasks      []Task
	cumulative []int
	total      int
}

// NewTaskSet builds a TaskSet. Zero-weight tasks are kept but never
// selected; negative weights are rejected.
func NewTaskSet(tasks []Task) (*TaskSet, error) {
	if len(tasks) == 0 {
		return nil, errors.New("swarm: no tasks defined")
	}

	ts := &TaskSet{
		tasks:      make([]Task, len(tasks)),
		cumulative: make([]int, len(tasks)),
	}
	copy(ts.tasks, tasks)

	for i, t := range ts.tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("swarm: task %d has no name", i)
		}
		if t.Run == nil {
			return nil, fmt.Errorf("swarm: task %q has no run function", t.Name)
		}
		if t.Weight < 0 {
			return nil, fmt.Errorf("swarm: task %q has negative weight %d", t.Name, t.Weight)
		}
		ts.total += t.Weight
		ts.cumulative[i] = ts.total
	}

	if ts.total == 0 {
		return nil, errors.New("swarm: all task weights are zero")
	}
	return ts, nil
}

// Pick returns a task chosen with probability weight/total.
func (ts *TaskSet) Pick(r Rand) Task {
	n := r.IntN(ts.total)
	i := sort.SearchInts(ts.cumulative, n+1)
	return ts.tasks[i]
}

// Tasks returns a copy of the tasks in declaration order.
func (ts *TaskSet) Tasks() []Task {
	out := make([]Task, len(ts.tasks))
	copy(out, ts.tasks)
	return out
}

// TotalWeight returns the sum of all weights.
func (ts *TaskSet) TotalWeight() int {
	return ts.total
}
