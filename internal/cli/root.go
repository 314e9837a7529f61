package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/duet/internal/config"
	"github.com/Paintersrp/duet/internal/runtime"
	"github.com/Paintersrp/duet/internal/runtime/process"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{}

	root := &cobra.Command{
		Use:   "duet",
		Short: "Run the backend and frontend development servers together",
		Long: "duet starts the backend, waits for the start delay, starts the frontend and\n" +
			"forwards Ctrl+C or SIGTERM to both before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd, ctx)
		},
	}

	root.PersistentFlags().
		StringVarP(&ctx.configFile, "file", "f", config.DefaultFile, "Path to the configuration file (optional)")
	root.PersistentFlags().StringVar(&ctx.logFormat, "log-format", logFormatAuto, "Progress output format: auto, text or json")
	root.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Show debug-level supervisor events")
	root.Flags().StringVar(&ctx.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")

	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type context struct {
	configFile  string
	logFormat   string
	metricsAddr string
	verbose     bool

	runtime runtime.Runtime
}

// loadConfig reads the configuration file when one was requested or exists in
// the working directory, and falls back to the built-in defaults otherwise.
func (c *context) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := false
	if flag := cmd.Flags().Lookup("file"); flag != nil && flag.Changed {
		explicit = true
	}
	path := c.configFile
	if path == "" {
		path = config.DefaultFile
	}

	if !explicit {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("stat config file: %w", err)
			}
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolve working directory: %w", err)
			}
			return config.LoadDefault(wd)
		}
	}
	return config.Load(path)
}

func (c *context) getRuntime() runtime.Runtime {
	if c.runtime == nil {
		c.runtime = process.New()
	}
	return c.runtime
}
