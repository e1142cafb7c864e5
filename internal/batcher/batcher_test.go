package batcher_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"aria/internal/batcher"
	"aria/internal/logging"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	batches [][]batcher.Command
	fail    error
	perCmd  func(batcher.Command) error
}

func (s *fakeSubmitter) Submit(_ context.Context, commands []batcher.Command) ([]batcher.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	batch := make([]batcher.Command, len(commands))
	copy(batch, commands)
	s.batches = append(s.batches, batch)

	outcomes := make([]batcher.Outcome, len(commands))
	if s.perCmd != nil {
		for i, command := range commands {
			outcomes[i] = batcher.Outcome{Err: s.perCmd(command)}
		}
	}
	return outcomes, nil
}

func (s *fakeSubmitter) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestCommandsWithinTickShareOneBatch(t *testing.T) {
	submitter := &fakeSubmitter{}
	b := batcher.New(submitter, 20*time.Millisecond, logging.NewNop())
	defer b.Close()

	first, err := b.Enqueue(batcher.Command{Name: "add", Args: []string{"a.flac"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := b.Enqueue(batcher.Command{Name: "add", Args: []string{"b.flac"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for _, ch := range []<-chan batcher.Outcome{first, second} {
		select {
		case outcome := <-ch:
			if outcome.Err != nil {
				t.Fatalf("outcome: %v", outcome.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for outcome")
		}
	}

	if got := submitter.batchCount(); got != 1 {
		t.Fatalf("expected a single batch, got %d", got)
	}
	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.batches[0]) != 2 {
		t.Errorf("expected 2 commands in the batch, got %d", len(submitter.batches[0]))
	}
	if submitter.batches[0][0].Args[0] != "a.flac" {
		t.Error("expected enqueue order preserved in the batch")
	}
}

func TestPartialFailureReportedPositionally(t *testing.T) {
	badTrack := errors.New("no such song")
	submitter := &fakeSubmitter{perCmd: func(command batcher.Command) error {
		if len(command.Args) > 0 && strings.Contains(command.Args[0], "missing") {
			return badTrack
		}
		return nil
	}}
	b := batcher.New(submitter, 5*time.Millisecond, logging.NewNop())
	defer b.Close()

	good, _ := b.Enqueue(batcher.Command{Name: "add", Args: []string{"ok.flac"}})
	bad, _ := b.Enqueue(batcher.Command{Name: "add", Args: []string{"missing.flac"}})
	alsoGood, _ := b.Enqueue(batcher.Command{Name: "play"})

	if outcome := <-good; outcome.Err != nil {
		t.Errorf("expected first command to succeed, got %v", outcome.Err)
	}
	if outcome := <-bad; !errors.Is(outcome.Err, badTrack) {
		t.Errorf("expected middle command to fail with its own error, got %v", outcome.Err)
	}
	if outcome := <-alsoGood; outcome.Err != nil {
		t.Errorf("expected command after the failure to succeed, got %v", outcome.Err)
	}
}

func TestTransportFailureFailsEveryCommand(t *testing.T) {
	down := errors.New("connection refused")
	submitter := &fakeSubmitter{fail: down}
	b := batcher.New(submitter, 5*time.Millisecond, logging.NewNop())
	defer b.Close()

	err := b.Do(context.Background(), batcher.Command{Name: "play"})
	if !errors.Is(err, down) {
		t.Fatalf("expected transport error surfaced, got %v", err)
	}
}

func TestFlushSubmitsImmediately(t *testing.T) {
	submitter := &fakeSubmitter{}
	b := batcher.New(submitter, time.Hour, logging.NewNop())
	defer b.Close()

	result, err := b.Enqueue(batcher.Command{Name: "status"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	b.Flush()

	select {
	case outcome := <-result:
		if outcome.Err != nil {
			t.Fatalf("outcome: %v", outcome.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Flush to bypass the tick window")
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	b := batcher.New(&fakeSubmitter{}, time.Millisecond, logging.NewNop())
	b.Close()

	if _, err := b.Enqueue(batcher.Command{Name: "play"}); !errors.Is(err, batcher.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSeparateTicksProduceSeparateBatches(t *testing.T) {
	submitter := &fakeSubmitter{}
	b := batcher.New(submitter, 5*time.Millisecond, logging.NewNop())
	defer b.Close()

	if err := b.Do(context.Background(), batcher.Command{Name: "play"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := b.Do(context.Background(), batcher.Command{Name: "pause"}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	if got := submitter.batchCount(); got != 2 {
		t.Errorf("expected 2 batches, got %d", got)
	}
	if stats := b.Stats(); stats.Batches != 2 || stats.Submitted != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
