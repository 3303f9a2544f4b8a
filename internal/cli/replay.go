package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/deadletter"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/dispatch"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/registry"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Input        string
	Keys         []string
	Fail         []string
	MetricsAddr  string
	DrainTimeout time.Duration
}

// KeyReport holds the replay outcome for one key.
type KeyReport struct {
	Key       string `json:"key"`
	Ingested  int64  `json:"ingested"`
	Handled   int64  `json:"handled"`
	Dropped   int64  `json:"dropped"`
	Dead      int64  `json:"dead"`
	Remaining int    `json:"remaining"`
	Consumed  bool   `json:"consumed"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Events  int                     `json:"events"`
	Drained bool                    `json:"drained"`
	Keys    []KeyReport             `json:"keys"`
	Dead    []*deadletter.DeadEvent `json:"dead,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed a JSONL change file through the engine",
		Long: `Read change events, one JSON object per line, ingest them into the engine
and dispatch them to a logging handler per key. Reports per-key counts and
every dead event once the handled keys are drained.

Each line has the form:
  {"operation":"insert","table":"messages","value":{...},"timestamp":"..."}

Blank lines and lines starting with '#' are skipped. Keys given with --fail
get a handler that always errors, to exercise retry and the dead-event path.

Exit codes:
  0 - Every handled event succeeded
  1 - Invalid configuration, or at least one event was discarded
  2 - Command error (unreadable input, bad key)

Examples:
  cdcflow replay --input feed.jsonl
  cdcflow replay -c cdcflow.yaml --input feed.jsonl --key messages.insert
  cat feed.jsonl | cdcflow replay --input - --fail users.delete --format json
  cdcflow replay --input feed.jsonl --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSONL change file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringSliceVarP(&opts.Keys, "key", "k", nil, "keys to handle (default: every key in the input)")
	cmd.Flags().StringSliceVar(&opts.Fail, "fail", nil, "keys whose handler always fails")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while replaying")
	cmd.Flags().DurationVar(&opts.DrainTimeout, "drain-timeout", 30*time.Second, "how long to wait for handled keys to drain")

	return cmd
}

// tally counts per-key drops on top of the exported recorder so replay
// knows when every accepted event has settled.
type tally struct {
	observability.MetricsRecorder
	dropped *registry.Registry[string, int64]
}

func (t *tally) RecordDropped(ctx context.Context, key, strategy string) {
	t.dropped.Update(key, func(n int64, _ bool) int64 { return n + 1 })
	t.MetricsRecorder.RecordDropped(ctx, key, strategy)
}

func runReplay(ctx context.Context, opts *ReplayOptions, out, errOut io.Writer, in io.Reader) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := newLogger(opts.RootOptions, errOut)

	promReg := prometheus.NewRegistry()
	prom, err := observability.NewPrometheusRecorder(promReg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	metrics := &tally{MetricsRecorder: prom, dropped: registry.New[string, int64]()}

	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, promReg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cfg, err := loadEngineConfig(opts.Config, middleware.Deps{
		Logger:  logger,
		Metrics: metrics,
		Spans:   observability.NewSpanManager(),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	events, err := readFeed(opts.Input, in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	keys, err := handledKeys(opts.Keys, events)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --key", err)
	}
	failing := make(map[change.Key]bool, len(opts.Fail))
	for _, s := range opts.Fail {
		failing[change.Key(s)] = true
	}

	journal := deadletter.NewJournal(deadletter.DefaultJournalConfig)
	engine, err := cdcflow.New(cfg,
		cdcflow.WithLogger(logger),
		cdcflow.WithMetrics(metrics),
		cdcflow.WithDeadLetter(journal),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	handled := registry.New[change.Key, int64]()
	for _, key := range keys {
		engine.On(key, replayHandler(logger, key, failing[key], handled),
			dispatch.WithHandlerName("replay:"+key.String()))
	}

	runCtx, cancel := context.WithCancel(ctx)
	engine.Start(runCtx)

	ingested := make(map[change.Key]int64)
	for _, evt := range events {
		// A full buffer for a key nobody handles blocks forever under the
		// block strategy.
		ingestCtx, ingestCancel := context.WithTimeout(runCtx, opts.DrainTimeout)
		err := engine.Ingest(ingestCtx, evt)
		ingestCancel()
		if err != nil {
			cancel()
			return WrapExitError(ExitCommandError, fmt.Sprintf("ingest of %s stalled", evt.Key()), err)
		}
		ingested[evt.Key()]++
	}

	settled := func() bool {
		for _, key := range keys {
			h, _ := handled.Get(key)
			d, _ := metrics.dropped.Get(key.String())
			if h+journal.Stats().ByKey[key]+d < ingested[key] {
				return false
			}
		}
		return true
	}
	drained := waitUntil(runCtx, opts.DrainTimeout, settled)
	if !drained {
		logger.Warn("drain incomplete", slog.Duration("timeout", opts.DrainTimeout))
	}

	result := ReplayResult{Events: len(events), Drained: drained, Dead: journal.List(0)}
	stats := journal.Stats()
	bufKeys := engine.Queue().Keys()
	slices.Sort(bufKeys)
	for _, key := range bufKeys {
		remaining, _ := engine.Size(key)
		h, _ := handled.Get(key)
		d, _ := metrics.dropped.Get(key.String())
		result.Keys = append(result.Keys, KeyReport{
			Key:       key.String(),
			Ingested:  ingested[key],
			Handled:   h,
			Dropped:   d,
			Dead:      stats.ByKey[key],
			Remaining: remaining,
			Consumed:  engine.Dispatcher().State(key) == dispatch.Consuming,
		})
	}

	cancel()
	engine.Wait()
	if err := engine.Shutdown(); err != nil {
		logger.Warn("queue shutdown failed", slog.String(observability.AttrError, err.Error()))
	}

	if opts.Format == "json" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		writeReplayText(out, result)
	}

	if len(result.Dead) > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d event(s) discarded", stats.Reported)}
	}
	return nil
}

// replayHandler logs each event, or always fails when fail is set.
func replayHandler(logger *slog.Logger, key change.Key, fail bool, handled *registry.Registry[change.Key, int64]) dispatch.HandlerFunc {
	return func(_ context.Context, evt change.Event) error {
		if fail {
			return fmt.Errorf("simulated failure for %s", key)
		}
		observability.EnrichLogger(logger, key.String(), evt.ID).Info("change replayed",
			slog.String("table", evt.Table),
			slog.String("operation", string(evt.Operation)),
			slog.Time("timestamp", evt.Timestamp),
			slog.Any("value", evt.Value),
		)
		handled.Update(key, func(n int64, _ bool) int64 { return n + 1 })
		return nil
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String(observability.AttrError, err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}

// readFeed decodes every event in the input before anything is ingested,
// so a malformed line aborts the replay without partial dispatch.
func readFeed(path string, stdin io.Reader) ([]change.Event, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var events []change.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		evt, err := change.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, evt)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// handledKeys returns the explicit keys, validated, or every distinct key
// in the feed in order of first appearance.
func handledKeys(explicit []string, events []change.Event) ([]change.Key, error) {
	if len(explicit) > 0 {
		keys := make([]change.Key, 0, len(explicit))
		for _, s := range explicit {
			table, op, err := change.ParseKey(s)
			if err != nil {
				return nil, err
			}
			keys = append(keys, change.KeyOf(table, op))
		}
		return keys, nil
	}

	seen := make(map[change.Key]bool)
	var keys []change.Key
	for _, evt := range events {
		if k := evt.Key(); !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// waitUntil polls cond until it holds, ctx is done or timeout elapses.
func waitUntil(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-tick.C:
		}
	}
}

func writeReplayText(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "Replayed %d event(s)", r.Events)
	if !r.Drained {
		fmt.Fprint(w, " (drain incomplete)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-32s %8s %8s %8s %8s %9s\n", "KEY", "INGESTED", "HANDLED", "DROPPED", "DEAD", "REMAINING")
	for _, k := range r.Keys {
		name := k.Key
		if !k.Consumed {
			name += " (no handler)"
		}
		fmt.Fprintf(w, "%-32s %8d %8d %8d %8d %9d\n", name, k.Ingested, k.Handled, k.Dropped, k.Dead, k.Remaining)
	}
	if len(r.Dead) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Dead events:")
	for _, d := range r.Dead {
		fmt.Fprintf(w, "  %s %s handler=%s attempts=%d kind=%s: %s\n",
			d.Key, d.Event.ID, d.Handler, d.Attempts, d.Kind, d.Error)
	}
}
