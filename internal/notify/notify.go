// Package notify delivers one-shot "version written" callbacks.
//
// Callers register a Listener for a version id. Once a unit of work that
// wrote that version has committed, the engine hands the writes to Notify
// and every pending listener for the id is called exactly once, on the
// notifier's dispatcher goroutine, never while the writer holds a
// transaction open.
//
// Delivery is at most once: listeners are detached before they are called,
// and a listener that registers again after the write waits for the next
// write of the same id.
package notify

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/docindex/internal/ir"
)

// Listener is a one-shot callback. Its identity is the pointer: registering
// the same *Listener twice for one version id is a no-op.
type Listener struct {
	fn func(rec ir.CanonicalRecord)
}

// NewListener wraps fn. fn receives a copy of the record as it was written.
func NewListener(fn func(rec ir.CanonicalRecord)) *Listener {
	return &Listener{fn: fn}
}

// Write describes one committed write of a version.
// Record is the canonical record for the document after the write.
type Write struct {
	VersionID string
	Record    ir.CanonicalRecord
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Notifier tracks pending listeners and dispatches them after writes.
//
// Thread-safety model:
//   - OnceWritten, Notify, Pending: safe from any goroutine
//   - listeners run on a single dispatcher goroutine, in registration order
type Notifier struct {
	mu      sync.Mutex
	pending map[string][]*Listener

	queue  *taskQueue
	logger *slog.Logger
	done   chan struct{}
}

// New starts a notifier and its dispatcher goroutine. Call Close to stop it.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		pending: make(map[string][]*Listener),
		queue:   newTaskQueue(),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	go n.run()
	return n
}

// OnceWritten registers l to be called the next time versionID is written.
// A nil listener is ignored.
func (n *Notifier) OnceWritten(versionID string, l *Listener) {
	if l == nil || l.fn == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if slices.Contains(n.pending[versionID], l) {
		return
	}
	n.pending[versionID] = append(n.pending[versionID], l)
}

// Pending returns the number of listeners waiting on versionID.
func (n *Notifier) Pending(versionID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending[versionID])
}

// Notify schedules the listeners waiting on each written version.
//
// It must only be called after the writes are durable. Listeners are
// detached here, so a version written twice in one batch fires its
// listeners for the first write only.
func (n *Notifier) Notify(writes []Write) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, w := range writes {
		listeners := n.pending[w.VersionID]
		if len(listeners) == 0 {
			continue
		}
		delete(n.pending, w.VersionID)

		t := task{
			versionID: w.VersionID,
			listeners: listeners,
			record:    w.Record.Clone(),
		}
		depth, ok := n.queue.Enqueue(t)
		if !ok {
			n.logger.Warn("notifier closed, dropping listeners",
				"version_id", w.VersionID,
				"listeners", len(listeners))
			continue
		}
		n.logger.Debug("listeners queued",
			"version_id", w.VersionID,
			"listeners", len(listeners),
			"queue_depth", depth)
	}
}

// Close stops accepting work, runs every task already queued, and waits
// for the dispatcher to exit. Listeners still pending are discarded.
func (n *Notifier) Close() {
	n.queue.Close()
	<-n.done

	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.pending)
}

func (n *Notifier) run() {
	defer close(n.done)

	for {
		if t, ok := n.queue.TryDequeue(); ok {
			n.dispatch(t)
			continue
		}
		if n.queue.Drained() {
			return
		}
		<-n.queue.Wait()
	}
}

func (n *Notifier) dispatch(t task) {
	for _, l := range t.listeners {
		if err := call(l, t.record.Clone()); err != nil {
			n.logger.Error("listener failed",
				"version_id", t.versionID,
				"doc_id", t.record.DocID,
				"error", err)
		}
	}
	n.logger.Debug("listeners fired",
		"version_id", t.versionID,
		"count", len(t.listeners))
}

// call runs one listener and turns a panic into an error.
func call(l *Listener, rec ir.CanonicalRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	l.fn(rec)
	return nil
}
