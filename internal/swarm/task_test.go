package swarm

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestNewTaskSet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  string
	}{
		{name: "empty", tasks: nil, want: "swarm: no tasks defined"},
		{name: "negative weight", tasks: []Task{{Name: "a", Weight: -1, Run: noop}}, want: `swarm: task "a" has negative weight -1`},
		{name: "all zero", tasks: []Task{{Name: "a", Run: noop}, {Name: "b", Run: noop}}, want: "swarm: all task weights are zero"},
		{name: "no name", tasks: []Task{{Weight: 1, Run: noop}}, want: "swarm: task 0 has no name"},
		{name: "no run", tasks: []Task{{Name: "a", Weight: 1}}, want: `swarm: task "a" has no run function`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTaskSet(tt.tasks)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestTaskSet_PickFollowsWeights(t *testing.T) {
	ts, err := NewTaskSet([]Task{
		{Name: "place_order", Weight: 3, Run: noop},
		{Name: "disabled", Weight: 0, Run: noop},
		{Name: "get_user_info", Weight: 1, Run: noop},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, ts.TotalWeight())
	assert.Len(t, ts.Tasks(), 3)

	r := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	const draws = 40000
	for i := 0; i < draws; i++ {
		counts[ts.Pick(r).Name]++
	}

	assert.Zero(t, counts["disabled"])
	ratio := float64(counts["place_order"]) / float64(draws)
	assert.InDelta(t, 0.75, ratio, 0.02, "place_order share")
}

// Every cumulative boundary maps to the right task.
type fixedRand struct{ n int }

func (f fixedRand) IntN(int) int     { return f.n }
func (f fixedRand) Float64() float64 { return 0 }

func TestTaskSet_PickBoundaries(t *testing.T) {
	ts, err := NewTaskSet([]Task{
		{Name: "a", Weight: 3, Run: noop},
		{Name: "z", Weight: 0, Run: noop},
		{Name: "b", Weight: 1, Run: noop},
	})
	require.NoError(t, err)

	want := []string{"a", "a", "a", "b"}
	for n, name := range want {
		assert.Equal(t, name, ts.Pick(fixedRand{n}).Name, "n=%d", n)
	}
}

func TestTaskSet_PickWithFaker(t *testing.T) {
	ts, err := NewTaskSet([]Task{{Name: "only", Weight: 2, Run: noop}})
	require.NoError(t, err)
	assert.Equal(t, "only", ts.Pick(gofakeit.New(7)).Name)
}

func TestBetween(t *testing.T) {
	wait := Between(time.Second, 2500*time.Millisecond)
	f := gofakeit.New(11)
	for i := 0; i < 1000; i++ {
		d := wait(f)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}

	swapped := Between(2*time.Second, time.Second)
	d := swapped(fixedRand{})
	assert.Equal(t, time.Second, d)

	assert.Equal(t, 3*time.Second, Between(3*time.Second, 3*time.Second)(f))
}

func TestConstant(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, Constant(250*time.Millisecond)(nil))
}
