// Package pipeline contains a generic source/unit/sink execution engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pipeline is a frozen graph of elements, ready to be run.
type Pipeline struct {
	g *graph
}

// Handle represents a running pipeline.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel asks every element to stop.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done returns a channel that is closed when the pipeline has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait waits for the pipeline to finish and returns the aggregate of all failures.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Run starts the pipeline in the background.
// Every element is prepared first; if any preparation fails, no data flows.
func (p *Pipeline) Run(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.err = p.run(ctx, cancel)
	}()

	return h
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (p *Pipeline) run(ctx context.Context, cancel context.CancelFunc) error {
	err := p.g.freeze()
	if err != nil {
		return err
	}

	nodes := p.g.nodes

	err = prepareAll(ctx, nodes)
	if err != nil {
		for _, n := range nodes {
			n.cleanup()
		}
		return err
	}

	var wg sync.WaitGroup
	var mutex sync.Mutex
	var errs []error

	for _, n := range nodes {
		wg.Add(1)
		go func(n node) {
			defer wg.Done()

			err := n.run(ctx)
			n.cleanup()

			if err != nil && !isCancellation(ctx, err) {
				mutex.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.label(), err))
				mutex.Unlock()
				cancel()
			}
		}(n)
	}

	wg.Wait()

	return errors.Join(errs...)
}

func prepareAll(ctx context.Context, nodes []node) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, n := range nodes {
		n := n
		g.Go(func() error {
			err := n.prepare(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", n.label(), err)
			}
			return nil
		})
	}

	return g.Wait()
}
