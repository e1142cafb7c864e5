// Package batcher accumulates player commands issued within one scheduling
// tick and submits them as a single ordered batch. The remote protocol gives
// no transactional guarantee, so results come back positionally: one outcome
// per command, and a failure in the middle of a batch fails only that
// command.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aria/internal/logging"
)

// Command is one discrete player operation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Outcome is the per-command result of a batch submission.
type Outcome struct {
	Err error
}

// Submitter sends an ordered command list and returns one outcome per
// command, in order. A returned error means the whole batch never reached
// the daemon.
type Submitter interface {
	Submit(ctx context.Context, commands []Command) ([]Outcome, error)
}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("batcher closed")

type pendingCommand struct {
	command Command
	result  chan Outcome
}

// Batcher coalesces commands into tick-aligned batches.
type Batcher struct {
	submitter Submitter
	tick      time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending []pendingCommand
	timer   *time.Timer
	closed  bool

	batches   uint64
	submitted uint64
}

// New constructs a batcher. tick is the accumulation window.
func New(submitter Submitter, tick time.Duration, logger *slog.Logger) *Batcher {
	if tick <= 0 {
		tick = 25 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Batcher{
		submitter: submitter,
		tick:      tick,
		logger:    logging.NewComponentLogger(logger, "batcher"),
	}
}

// Enqueue adds command to the current window. The returned channel receives
// exactly one Outcome once the batch containing the command completes.
func (b *Batcher) Enqueue(command Command) (<-chan Outcome, error) {
	result := make(chan Outcome, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.pending = append(b.pending, pendingCommand{command: command, result: result})
	if b.timer == nil {
		b.timer = time.AfterFunc(b.tick, b.flush)
	}
	return result, nil
}

// Do enqueues command and waits for its outcome.
func (b *Batcher) Do(ctx context.Context, command Command) error {
	result, err := b.Enqueue(command)
	if err != nil {
		return err
	}
	select {
	case outcome := <-result:
		return outcome.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush submits the current window immediately instead of waiting for the
// tick.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	b.flush()
}

// Close flushes pending commands and rejects any further enqueues.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	b.flush()
}

// Stats reports batch counters.
type Stats struct {
	Batches   uint64
	Submitted uint64
}

// Stats returns a snapshot of the batcher counters.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Batches: b.batches, Submitted: b.submitted}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.timer = nil
	if len(batch) > 0 {
		b.batches++
		b.submitted += uint64(len(batch))
	}
	b.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	commands := make([]Command, len(batch))
	for i, pending := range batch {
		commands[i] = pending.command
	}

	outcomes, err := b.submitter.Submit(context.Background(), commands)
	if err != nil {
		// Transport failure: nothing reached the daemon, every command
		// shares the error.
		b.logger.Warn("batch submission failed",
			logging.Error(err),
			logging.Int("commands", len(commands)),
		)
		for _, pending := range batch {
			pending.result <- Outcome{Err: fmt.Errorf("submit batch: %w", err)}
		}
		return
	}
	if len(outcomes) != len(batch) {
		err := fmt.Errorf("submitter returned %d outcomes for %d commands", len(outcomes), len(batch))
		for _, pending := range batch {
			pending.result <- Outcome{Err: err}
		}
		return
	}
	for i, pending := range batch {
		pending.result <- outcomes[i]
	}
}
