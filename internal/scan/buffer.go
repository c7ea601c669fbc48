package scan

import (
	"sync"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// predicateBuffer accumulates live Apply blocks for a single predicate
// while its historical scan is still in flight, so nothing the pool
// emits between scan start and scan catch-up is lost.
type predicateBuffer struct {
	mu     sync.Mutex
	blocks []chainmodel.Block
}

func (b *predicateBuffer) append(blocks []chainmodel.Block) {
	if len(blocks) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = append(b.blocks, blocks...)
}

func (b *predicateBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks)
}

// drain returns every buffered block and resets the buffer, in the order
// they were appended.
func (b *predicateBuffer) drain() []chainmodel.Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.blocks
	b.blocks = nil
	return out
}
