// Package varwatch instruments a running program to observe chosen
// expressions at chosen source locations and streams the observed values
// to a message-queue collector, falling back to a local append-only file
// while the collector is unreachable.
//
// A host embeds the collector with three calls:
//
//	c, err := varwatch.Start("varwatch.yaml")
//	...
//	c.OnEvent(types.Event{File: f, Line: n, Scope: scope}) // per traced step
//	...
//	c.Stop() // graceful drain and flush
//
// OnEvent is synchronous and cheap on the non-instrumented path; all
// delivery work happens on pool workers.
package varwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/varwatch/varwatch/internal/capture"
	"github.com/varwatch/varwatch/internal/config"
	"github.com/varwatch/varwatch/internal/eval"
	"github.com/varwatch/varwatch/internal/metrics"
	"github.com/varwatch/varwatch/internal/registry"
	"github.com/varwatch/varwatch/internal/transport"
	"github.com/varwatch/varwatch/internal/worker"
	"github.com/varwatch/varwatch/pkg/types"
)

// Collector is a started varwatch instance.
type Collector struct {
	cfg     *config.Config
	disp    *capture.Dispatcher
	pool    *worker.Pool
	cancel  context.CancelFunc
	stopped atomic.Bool

	// logClose closes the log file, if one was opened.
	logClose func()
}

// Start loads the configuration and instrumentation table at configPath
// and begins collection. Configuration problems are the only fatal
// errors; everything after startup degrades instead of failing.
func Start(configPath string) (*Collector, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	c := &Collector{cfg: cfg}
	if err := c.setupLogging(); err != nil {
		return nil, err
	}

	if cfg.Mode.Task == config.TaskDisabled {
		slog.Info("varwatch disabled (mode.task = 0)")
		c.stopped.Store(true)
		return c, nil
	}

	reg, warnings, err := registry.Load(cfg.Points.Path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		slog.Warn(w)
	}
	slog.Info("instrumentation table loaded",
		"path", cfg.Points.Path, "points", reg.Len())

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if cfg.Mode.Task == config.TaskDebug {
		// Debug mode: capture and log, ship nothing.
		c.disp = capture.NewDispatcher(reg, eval.New(), debugSink{})
	} else {
		var file *transport.FileSink
		if cfg.Output.NsqWithFileMode {
			file = transport.NewFileSink(cfg.Output.NsqWithFileName)
		}
		opts := transport.Options{
			Topic:          cfg.Nsq.Topic,
			ShakeTopic:     cfg.Nsq.ShakeTopic,
			ShakeMsg:       cfg.Nsq.ShakeMsg,
			WrongLimit:     cfg.Nsq.WrongLimit,
			PublishTimeout: cfg.Nsq.PublishTimeout,
			File:           file,
		}
		if cfg.Output.NsqMode {
			opts.NewPublisher = transport.NewNSQPublisher(cfg.Nsq.Address())
		}
		tm := transport.NewManager(opts)
		go tm.Run(ctx)

		c.pool = worker.NewPool(worker.Options{
			Num:           cfg.Process.Num,
			QueueSize:     cfg.Process.QueueSize,
			Limit:         cfg.Nsq.Limit,
			FlushInterval: cfg.Nsq.FlushInterval,
			Name:          cfg.Nsq.Name,
			Grace:         cfg.Shutdown.Grace,
		}, tm.Deliver)
		c.pool.Start(ctx)

		c.disp = capture.NewDispatcher(reg, eval.New(), c.pool)
	}

	// Points are immutable for the process lifetime; a changed file on
	// disk only means this process is running stale instrumentation.
	go func() {
		err := config.Watch(ctx, []string{configPath, cfg.Points.Path}, func(path string) {
			metrics.ConfigStale.Set(1)
			slog.Warn("configuration changed on disk; restart required to apply", "path", path)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	slog.Info("varwatch started",
		"task", cfg.Mode.Task,
		"workers", cfg.Process.Num,
		"nsq_mode", cfg.Output.NsqMode,
		"file_mode", cfg.Output.NsqWithFileMode)
	return c, nil
}

// Config returns the loaded runtime configuration.
func (c *Collector) Config() *config.Config {
	return c.cfg
}

// OnEvent is the host program's per-step hook. It is a no-op after Stop
// and when the collector is disabled.
func (c *Collector) OnEvent(ev types.Event) {
	if c.stopped.Load() {
		return
	}
	c.disp.OnEvent(ev)
}

// Stop shuts the pipeline down gracefully: the intake is drained, every
// buffer is flushed to at least the file sink, and the transport and
// watchers are cancelled. Stop is idempotent.
func (c *Collector) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	slog.Info("varwatch stopping")
	if c.pool != nil {
		c.pool.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.logClose != nil {
		c.logClose()
	}
	slog.Info("varwatch stopped")
}

// setupLogging installs the process-wide slog handler per the log
// section: JSON to the configured file, or stdout when unset.
func (c *Collector) setupLogging() error {
	out := os.Stdout
	if c.cfg.Log.File != "" {
		f, err := os.OpenFile(c.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("config: open log file: %w", err)
		}
		out = f
		c.logClose = func() { f.Close() }
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: c.cfg.Log.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return nil
}

// debugSink logs records instead of shipping them (mode.task = 1).
type debugSink struct{}

func (debugSink) Offer(rec types.Record) bool {
	slog.Debug("captured record",
		"file", rec.File, "line", rec.Line, "key", rec.Key, "value", rec.Value)
	return true
}
