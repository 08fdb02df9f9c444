package pool

import (
	"fmt"
	"sync"

	"github.com/mwantia/audiopool/pkg/errdefs"
)

// ProgressFunc receives the completed fraction of a batch in [0, 1]. Values
// never decrease and a batch that runs to the end always reports exactly 1.
type ProgressFunc func(fraction float64)

type Failure struct {
	EntryID string
	Path    string
	Err     error
}

// BatchResult summarizes a batch operation. Failed items are recorded and
// skipped; they never abort the batch.
type BatchResult struct {
	Total     int
	Succeeded int
	Failures  []Failure
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%d of %d succeeded", r.Succeeded, r.Total)
}

func (r *BatchResult) fail(id, path string, err error) {
	r.Failures = append(r.Failures, Failure{EntryID: id, Path: path, Err: err})
}

// beginBatch claims the pool's single batch slot.
func (p *Pool) beginBatch(name string) (func(), error) {
	if !p.batch.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", name, errdefs.ErrOperationInProgress)
	}
	return func() { p.batch.Store(false) }, nil
}

type progress struct {
	mu    sync.Mutex
	fn    ProgressFunc
	total int
	done  int
}

func newProgress(fn ProgressFunc, total int) *progress {
	return &progress{fn: fn, total: total}
}

// step marks one more item as processed. It is safe for concurrent use and
// calls are delivered in order.
func (p *progress) step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done >= p.total {
		return
	}
	p.done++
	p.report()
}

// finish reports completion for batches that had nothing to do.
func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		p.report()
	}
}

func (p *progress) report() {
	if p.fn == nil {
		return
	}
	if p.total == 0 || p.done == p.total {
		p.fn(1)
		return
	}
	p.fn(float64(p.done) / float64(p.total))
}
