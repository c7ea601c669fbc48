package api

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/predicate"
)

// sinkFactory builds the dispatch.Sink a predicate's ActionSpec names,
// sharing one *dispatch.FileSink per destination path so a burst of
// concurrent deliveries to the same file coalesces into one buffered write,
// per dispatch.FileSink's own doc comment.
type sinkFactory struct {
	ctx    context.Context
	logger *zap.Logger

	mu        sync.Mutex
	fileSinks map[string]*dispatch.FileSink
}

func newSinkFactory(ctx context.Context, logger *zap.Logger) *sinkFactory {
	return &sinkFactory{ctx: ctx, logger: logger, fileSinks: make(map[string]*dispatch.FileSink)}
}

func (f *sinkFactory) forAction(action predicate.ActionSpec) (dispatch.Sink, error) {
	switch action.Kind {
	case predicate.ActionHTTPPost:
		return dispatch.NewHTTPSink(dispatch.HTTPSinkConfig{
			URL:                 action.URL,
			AuthorizationHeader: action.AuthorizationHeader,
		}, f.logger), nil
	case predicate.ActionFileAppend:
		return f.fileSink(action.Path)
	default:
		return nil, fmt.Errorf("api: unsupported action kind %q", action.Kind)
	}
}

func (f *sinkFactory) fileSink(path string) (*dispatch.FileSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sink, ok := f.fileSinks[path]; ok {
		return sink, nil
	}
	sink, err := dispatch.NewFileSink(f.ctx, path, f.logger)
	if err != nil {
		return nil, err
	}
	f.fileSinks[path] = sink
	return sink, nil
}
