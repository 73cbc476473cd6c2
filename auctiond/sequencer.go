package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudx-io/blindauction/api"
)

var errSequencerStopped = errors.New("sequencer stopped")

type job struct {
	req   api.Request
	reply chan api.Response
}

// Sequencer applies requests to the engine one at a time, in the order they
// were submitted. Successful mutating requests are appended to the journal
// before the reply is sent.
type Sequencer struct {
	engine  *Engine
	journal *Journal
	jobs    chan job
	done    chan struct{}
	logger  log.Logger
}

// NewSequencer creates a sequencer. journal may be nil.
func NewSequencer(engine *Engine, journal *Journal, logger log.Logger) *Sequencer {
	if logger == nil {
		logger = log.Root()
	}
	return &Sequencer{
		engine:  engine,
		journal: journal,
		jobs:    make(chan job),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run processes submitted requests until ctx is cancelled or the journal
// can no longer be written.
func (s *Sequencer) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			resp, err := s.apply(j.req)
			j.reply <- resp
			if err != nil {
				s.logger.Error("Sequencer stopped", "err", err)
				return
			}
		}
	}
}

// Done is closed when Run returns.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// apply handles req and journals it when it changed state. A journal
// failure is returned together with a failed response: the change is
// applied in memory but would be missing after a restart, so nothing may
// be applied on top of it.
func (s *Sequencer) apply(req api.Request) (api.Response, error) {
	req = s.engine.Resolve(req)
	resp := s.engine.Handle(req)
	if !resp.Success || !api.Mutating(req.Type) || s.journal == nil {
		return resp, nil
	}
	if err := s.journal.Append(req); err != nil {
		err = fmt.Errorf("journal append for %s %s: %w", req.Type, req.RequestID, err)
		return api.ErrorResponse(req, err), err
	}
	return resp, nil
}

// Submit queues req and waits for its response.
func (s *Sequencer) Submit(ctx context.Context, req api.Request) (api.Response, error) {
	j := job{req: req, reply: make(chan api.Response, 1)}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return api.Response{}, ctx.Err()
	case <-s.done:
		return api.Response{}, errSequencerStopped
	}

	// An accepted job is always answered, even if ctx ends meanwhile
	return <-j.reply, nil
}
