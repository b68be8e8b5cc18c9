package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/server"
	"github.com/msto63/overlay/internal/overlay/tui"
	"github.com/spf13/cobra"
)

var (
	runTUI         bool
	runServe       bool
	runHotkey      bool
	runLanguage    string
	runRecord      bool
	runProjectMode bool
	runMicrophone  bool
	runPort        int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start live capture and question extraction",
	Long: `Starts capturing system audio, streams it to the recognizer and extracts
interview questions from the live transcript. Every question is stored in
the history of the active setup session and answered.

Without --tui the questions and answers are printed to stdout.

Requirements:
  - STT_API_KEY (or [stt] api_key) for the streaming recognizer
  - OPENAI_API_KEY for remote extraction (optional, heuristic otherwise)
  - A setup session with CV and job description for hotkey captures

Examples:
  overlay run                          # headless, prints questions
  overlay run --tui                    # terminal live view
  overlay run --serve --port 8765      # with local HTTP/WebSocket feed
  overlay run --language es-ES -s acme # Spanish, session "acme"`,
	RunE: runOverlay,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runTUI, "tui", "t", false, "show the terminal live view")
	runCmd.Flags().BoolVar(&runServe, "serve", false, "serve state and events over HTTP/WebSocket")
	runCmd.Flags().BoolVar(&runHotkey, "hotkey", true, "register the Ctrl+Shift+Q capture hotkey")
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "en-US", "recognition language (BCP-47)")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "write the transcriber input to a WAV file")
	runCmd.Flags().BoolVar(&runProjectMode, "project-mode", false, "answer with the project description")
	runCmd.Flags().BoolVar(&runMicrophone, "mic", false, "also open the microphone for the level meter")
	runCmd.Flags().IntVar(&runPort, "port", 0, "feed port (default from config)")
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override the config file
	if cmd.Flags().Changed("language") {
		cfg.STT.Language = runLanguage
	}
	if cmd.Flags().Changed("record") {
		cfg.Audio.RecordWAV = runRecord
	}
	if cmd.Flags().Changed("project-mode") {
		cfg.Answer.ProjectMode = runProjectMode
	}
	if cmd.Flags().Changed("mic") {
		cfg.Audio.Microphone = runMicrophone
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = runPort
	}

	closeLog, err := setupLogging(cfg, runTUI)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.provider.Load().Ready() {
		a.logger.Warn("Setup incomplete, captures are disabled until CV and job description are set",
			"session", a.provider.Session(), "folder", a.provider.SessionFolder())
	}

	if runServe {
		srv := server.New(server.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
		}, a.pipeline, a.health)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start feed server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	if runHotkey {
		go func() {
			err := watchCaptureHotkey(ctx, func() { captureOnce(ctx, a) })
			if err != nil {
				a.logger.Warn("Capture hotkey unavailable", "error", err)
			}
		}()
	}

	if err := a.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	if runTUI {
		return tui.Run(ctx, a.pipeline)
	}
	return printEvents(ctx, a.pipeline)
}

// captureOnce runs one hotkey capture and logs the outcome
func captureOnce(ctx context.Context, a *app) {
	item, found, err := a.pipeline.Capture(ctx)
	switch {
	case err != nil:
		a.logger.Warn("Capture failed", "error", err)
	case !found:
		a.logger.Info("No question found in transcript")
	default:
		a.logger.Info("Captured question", "id", item.ID, "status", item.Status)
	}
}

// printEvents writes questions and answers to stdout until ctx ends
func printEvents(ctx context.Context, p *pipeline.Pipeline) error {
	events, cancel := p.Subscribe()
	defer cancel()

	fmt.Printf("Listening (%s). Press Ctrl+C to stop.\n", p.Language())
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case pipeline.EventQuestion:
				fmt.Printf("\nQ: %s\n", ev.Question)
			case pipeline.EventItem:
				if ev.Item != nil && ev.Item.Answered() {
					fmt.Printf("A: %s\n", ev.Item.Answer)
				}
			case pipeline.EventError:
				fmt.Fprintf(os.Stderr, "Error: %s\n", ev.Err)
			}
		}
	}
}
