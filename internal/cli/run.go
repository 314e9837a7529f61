package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/duet/internal/cliutil"
	"github.com/Paintersrp/duet/internal/engine"
	"github.com/Paintersrp/duet/internal/metrics"
)

const (
	logFormatAuto = "auto"
	logFormatText = "text"
	logFormatJSON = "json"
)

func runSupervisor(cmd *cobra.Command, ctx *context) error {
	format, err := resolveLogFormat(ctx.logFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := ctx.loadConfig(cmd)
	if err != nil {
		return err
	}

	if ctx.metricsAddr != "" {
		stopMetrics, err := serveMetrics(ctx.metricsAddr)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	events := make(chan engine.Event, 64)
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		printEvents(cmd.OutOrStdout(), cmd.ErrOrStderr(), events, format, ctx.verbose)
	}()

	if cfg.Source != "" {
		events <- engine.Event{
			Timestamp: time.Now(),
			Type:      engine.EventTypeNotice,
			Level:     "debug",
			Source:    engine.SourceSystem,
			Message:   fmt.Sprintf("Loaded configuration from %s", cfg.Source),
		}
	}

	sup := engine.New(cfg, ctx.getRuntime(),
		engine.WithEvents(events),
		engine.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)
	runErr := sup.Run(cmd.Context())

	close(events)
	printer.Wait()
	return runErr
}

func printEvents(stdout, stderr io.Writer, events <-chan engine.Event, format string, verbose bool) {
	var enc *json.Encoder
	if format == logFormatJSON {
		enc = json.NewEncoder(stdout)
	}
	for evt := range events {
		if cliutil.IsDebug(evt) && !verbose {
			continue
		}
		if enc != nil {
			cliutil.EncodeLogEvent(enc, stderr, evt)
			continue
		}
		out := stdout
		if evt.Level == "error" || evt.Level == "warn" {
			out = stderr
		}
		fmt.Fprintln(out, cliutil.FormatText(evt))
	}
}

func resolveLogFormat(format string, out io.Writer) (string, error) {
	switch format {
	case logFormatText, logFormatJSON:
		return format, nil
	case "", logFormatAuto:
		// Redirected output (files, pipes into log collectors) gets JSON.
		if f, ok := out.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return logFormatJSON, nil
		}
		return logFormatText, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (expected auto, text or json)", format)
	}
}

// serveMetrics exposes the metrics registry on addr and returns a function
// that shuts the listener down.
func serveMetrics(addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	return func() {
		shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}, nil
}
