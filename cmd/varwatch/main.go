package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/varwatch/varwatch"
	"github.com/varwatch/varwatch/pkg/types"
)

// varwatch replays recorded execution events through the collection
// pipeline. It stands in for the host-program event source: each input
// line is one JSON event {"file": ..., "line": ..., "scope": {...}}.
func main() {
	configPath := flag.String("config", "varwatch.yaml", "path to config file")
	eventsPath := flag.String("events", "-", "JSONL event stream, - for stdin")
	flag.Parse()

	slog.Info("varwatch starting", "config", *configPath)

	c, err := varwatch.Start(*configPath)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional Prometheus endpoint for the pipeline counters.
	if addr := c.Config().Metrics.Listen; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("metrics endpoint listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics endpoint stopped", "err", err)
			}
		}()
	}

	in, err := openEvents(*eventsPath)
	if err != nil {
		slog.Error("failed to open event stream", "path", *eventsPath, "err", err)
		os.Exit(1)
	}
	defer in.Close()

	fed, skipped := feed(ctx, in, c)
	slog.Info("event stream exhausted", "events", fed, "skipped", skipped)

	c.Stop()
}

func openEvents(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// feed pushes events through the collector until the stream ends or ctx
// is cancelled. Unparsable lines are skipped with a warning.
func feed(ctx context.Context, in io.Reader, c *varwatch.Collector) (fed, skipped int) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return fed, skipped
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			slog.Warn("skipping unparsable event line", "err", err)
			continue
		}
		c.OnEvent(ev)
		fed++
	}
	if err := scanner.Err(); err != nil {
		slog.Error("event stream read failed", "err", err)
	}
	return fed, skipped
}
