package seal

import (
	"context"

	"github.com/brickingsoft/rxp"
)

// TaskExecutor runs engine delegated tasks. Execute reports false when the
// task was rejected and will never run; the session tolerates that and leaves
// the handshake to its deadline.
type TaskExecutor interface {
	Execute(task func()) (ok bool)
}

// InlineExecutor runs tasks synchronously within the submitting call.
type InlineExecutor struct{}

func (InlineExecutor) Execute(task func()) (ok bool) {
	task()
	ok = true
	return
}

// NewExecutors adapts an rxp executor pool. Task results still get marshalled
// back onto the session loop by the session itself.
func NewExecutors(ctx context.Context, executors rxp.Executors) TaskExecutor {
	if ctx == nil {
		ctx = context.Background()
	}
	return &rxpExecutor{
		ctx: rxp.With(ctx, executors),
	}
}

type rxpExecutor struct {
	ctx context.Context
}

func (e *rxpExecutor) Execute(task func()) (ok bool) {
	ok = rxp.TryExecute(e.ctx, &delegatedTask{fn: task})
	return
}

type delegatedTask struct {
	fn func()
}

func (task *delegatedTask) Handle(_ context.Context) {
	task.fn()
}
