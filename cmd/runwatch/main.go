// ABOUTME: CLI entrypoint for runwatch with watch, status, cancel, and demo commands.
// ABOUTME: Wires the HTTP client, run controller, and Bubble Tea viewer together.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/runwatch/client"
	"github.com/2389-research/runwatch/config"
	"github.com/2389-research/runwatch/devserver"
	"github.com/2389-research/runwatch/tui"
	"github.com/2389-research/runwatch/watch"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "runwatch",
	Short: "Terminal viewer for AI workflow runs",
	Long: `Runwatch attaches to a workflow service run, follows its event stream,
and reconciles against the status endpoint when the stream is unreliable.
It renders the run log, live agent activity, and input pauses in the terminal.`,
	Version: version,
}

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Attach to a run and follow it in the terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return watchRun(cfg, args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Print a run's current status and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		res, err := newClient(cfg).Status(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("status: %s\n", res.Status)
		if res.Output != "" {
			fmt.Printf("output: %s\n", res.Output)
		}
		if res.Error != "" {
			fmt.Printf("error: %s\n", res.Error)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Request cancellation of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		if err := newClient(cfg).Cancel(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("cancellation requested for %s\n", args[0])
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the viewer against a built-in scripted run",
	Long: `Demo starts an in-process simulator, launches a scripted run on it, and
attaches the viewer. No workflow service is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("start demo server: %w", err)
		}
		defer ln.Close()

		sim := devserver.New()
		srv := &http.Server{Handler: sim.Handler()}
		go func() { _ = srv.Serve(ln) }()
		defer srv.Close()

		cfg.ServerURL = "http://" + ln.Addr().String()
		runID := sim.StartRun(devserver.DemoScript())
		return watchRun(cfg, runID)
	},
}

// watchRun attaches a controller to the run and hands the terminal to the
// viewer until the user quits.
func watchRun(cfg config.Config, runID string) error {
	opts := watch.Options{
		PollInterval:    cfg.PollInterval,
		EarlyCheckDelay: cfg.EarlyCheckDelay,
	}

	// Engine diagnostics cannot go to stderr while the alt screen is up;
	// RUNWATCH_DEBUG routes them to a file instead.
	if os.Getenv("RUNWATCH_DEBUG") != "" {
		f, err := tea.LogToFile("runwatch-debug.log", "runwatch")
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		opts.Logf = log.Printf
	}

	ctrl := watch.NewController(newClient(cfg), runID, opts)
	if err := ctrl.Attach(context.Background()); err != nil {
		return err
	}
	defer ctrl.Close()

	p := tea.NewProgram(tui.NewAppModel(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

func newClient(cfg config.Config) *client.Client {
	return client.New(cfg.ServerURL, client.WithCallTimeout(cfg.CallTimeout))
}

// resolveConfig loads configuration in precedence order and applies the
// --server flag on top.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if server, _ := flags.GetString("server"); server != "" {
		cfg.ServerURL = server
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a runwatch.yaml config file")
	rootCmd.PersistentFlags().String("server", "", "Workflow service base URL (overrides config)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	loadDotEnv(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
