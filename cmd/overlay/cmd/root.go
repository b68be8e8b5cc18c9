package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/msto63/overlay/internal/overlay/setup"
	"github.com/msto63/overlay/pkg/core/config"
	"github.com/msto63/overlay/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verbose     bool
	sessionName string
)

var rootCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Live interview assistant",
	Long: `overlay listens to the system audio of a call, transcribes it live,
picks interview questions out of the transcript and keeps a question/answer
history for the active setup session.

Commands:
  run      - start the capture pipeline (headless, TUI or with event feed)
  extract  - run question extraction on text
  session  - manage setup sessions (CV, job description, project notes)
  export   - export archived questions as YAML
  devices  - list audio input devices`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("overlay", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $OVERLAY_CONFIG or ./configs/overlay.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&sessionName, "session", "s", "", "setup session to use")
}

// loadConfig reads the configuration and applies the global flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		config.LoadDotEnv()
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.General.LogLevel = "debug"
	}
	if cmd.Flags().Changed("session") {
		if err := setup.ValidateName(sessionName); err != nil {
			return nil, fmt.Errorf("invalid --session: %w", err)
		}
		cfg.Session.Name = sessionName
	}
	return cfg, nil
}

// setupLogging points all loggers at stderr and the optional log file.
// With quiet set stderr is left out so the terminal view stays clean.
func setupLogging(cfg *config.Config, quiet bool) (func(), error) {
	var outputs []io.Writer
	if !quiet {
		outputs = append(outputs, os.Stderr)
	}

	closer := func() {}
	if cfg.General.LogFile != "" {
		f, err := logging.OpenFile(cfg.General.LogFile)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, f)
		closer = func() { f.Close() }
	}

	var out io.Writer = io.Discard
	if len(outputs) > 0 {
		out = io.MultiWriter(outputs...)
	}

	logging.Configure(logging.Config{
		Level:        cfg.General.LogLevel,
		Format:       cfg.General.LogFormat,
		Output:       out,
		EnableCaller: verbose,
	})
	return closer, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
