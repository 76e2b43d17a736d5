package core

import (
	"context"
	"time"

	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/metrics"
	"github.com/ovframework/ovf/internal/pipeline"
)

// runner runs a pipeline and restarts it after a pause when it stops.
type runner struct {
	RestartPause time.Duration
	NewPipeline  func() *pipeline.Pipeline
	Metrics      *metrics.Metrics
	Parent       logger.Writer

	ctx       context.Context
	ctxCancel func()

	// out
	done chan struct{}
}

func (r *runner) initialize() {
	r.ctx, r.ctxCancel = context.WithCancel(context.Background())
	r.done = make(chan struct{})

	go r.run()
}

func (r *runner) close() {
	r.ctxCancel()
	<-r.done
}

// Log implements logger.Writer.
func (r *runner) Log(level logger.Level, format string, args ...interface{}) {
	r.Parent.Log(level, "[pipeline] "+format, args...)
}

func (r *runner) run() {
	defer close(r.done)

	for {
		r.Log(logger.Info, "started")

		err := r.NewPipeline().Run(r.ctx).Wait()

		if r.ctx.Err() != nil {
			r.Log(logger.Info, "stopped")
			return
		}

		if err != nil {
			r.Log(logger.Error, "%v", err)
		} else {
			r.Log(logger.Info, "terminated")
		}

		r.Log(logger.Info, "restarting in %v", r.RestartPause)

		select {
		case <-time.After(r.RestartPause):
		case <-r.ctx.Done():
			return
		}

		r.Metrics.PipelineRestarted()
	}
}
