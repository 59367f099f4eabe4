// Package swarm runs virtual users: each one executes a Behavior's weighted
// tasks in a loop with a wait time in between, until the run ends or the
// behavior asks to stop.
package swarm

import (
	"context"
	"errors"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	stormhttp "github.com/wesleyorama2/orderstorm/internal/http"
)

// ErrStopUser is returned by a task or OnStart to end the calling virtual
// user. Other virtual users keep running.
var ErrStopUser = errors.New("swarm: stop user")

// Recorder receives request outcomes. *metrics.Engine implements it.
type Recorder interface {
	RecordSuccess(name string, elapsed time.Duration, bytes int64)
	RecordFailure(name string, elapsed time.Duration, bytes int64, message string)
}

// Env is everything a behavior gets from the runner. One Env per virtual user;
// nothing in it is shared mutable state except the connection pool behind Client.
type Env struct {
	VUID     int
	Client   *stormhttp.Client
	Recorder Recorder
	Logger   *zap.Logger
	Faker    *gofakeit.Faker

	// UserCount reports the number of running virtual users
	UserCount func() int
}

// ActiveUsers returns UserCount() or 0 when no counter is attached.
func (e *Env) ActiveUsers() int {
	if e.UserCount == nil {
		return 0
	}
	return e.UserCount()
}

// Behavior is what a virtual user does.
type Behavior interface {
	// OnStart runs once before the first task
	OnStart(ctx context.Context) error

	// Tasks returns the weighted tasks to pick from
	Tasks() []Task
}

// BehaviorFactory builds the behavior for one virtual user.
type BehaviorFactory func(env *Env) Behavior
