package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// actorQueueSize bounds how many Process calls can be in flight behind the
// Actor's command channel before Submit blocks its caller.
const actorQueueSize = 64

// Actor serializes access to a Pool behind a single consumer goroutine, so
// the many concurrent producers a chain adapter may run (RPC poller, ZMQ
// subscriber, backfill worker) can all call Submit without racing the
// pool's unsynchronized state (spec.md §5).
type Actor struct {
	pool   *Pool
	logger *zap.Logger
	queue  chan command
	done   chan struct{}
}

type command struct {
	block chainmodel.RawBlock
	reply chan<- result
}

type result struct {
	update *chainmodel.ChainUpdate
	err    error
}

// NewActor starts an Actor wrapping pool. The Actor's main loop runs until
// ctx is canceled; callers must not call Submit after that without getting
// context.Canceled back.
func NewActor(ctx context.Context, p *Pool, logger *zap.Logger) *Actor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Actor{
		pool:   p,
		logger: logger.Named("pool-actor"),
		queue:  make(chan command, actorQueueSize),
		done:   make(chan struct{}),
	}
	go a.mainLoop(ctx)
	return a
}

func (a *Actor) mainLoop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.queue:
			update, err := a.pool.Process(cmd.block)
			select {
			case cmd.reply <- result{update: update, err: err}:
			case <-ctx.Done():
			}
		}
	}
}

// Submit hands a single block to the pool's owning goroutine and blocks
// until it has been processed, or ctx is canceled.
func (a *Actor) Submit(ctx context.Context, raw chainmodel.RawBlock) (*chainmodel.ChainUpdate, error) {
	reply := make(chan result, 1)
	select {
	case a.queue <- command{block: raw, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, fmt.Errorf("pool: actor stopped")
	}

	select {
	case r := <-reply:
		return r.update, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the actor's main loop has exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}
