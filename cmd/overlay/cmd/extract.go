package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/msto63/overlay/internal/overlay/question"
	"github.com/msto63/overlay/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	extractHeuristic   bool
	extractJSON        bool
	extractProjectMode bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [text...]",
	Short: "Extract the interview question from text",
	Long: `Runs question extraction once on the given text, or on stdin when no
text is given. The remote classifier is used when configured, otherwise the
local heuristic.

Examples:
  overlay extract "so tell me about a project you are proud of"
  cat transcript.txt | overlay extract --json
  overlay extract --heuristic "what was the hardest bug you fixed"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&extractHeuristic, "heuristic", false, "use only the local heuristic")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the result as JSON")
	extractCmd.Flags().BoolVar(&extractProjectMode, "project-mode", false, "route with project mode enabled")
}

// extractResult is the printed outcome of one extraction
type extractResult struct {
	IsQuestion bool   `json:"isQuestion"`
	Question   string `json:"question,omitempty"`
	Route      string `json:"route,omitempty"`
	Source     string `json:"source"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	closeLog, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog()

	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("no text given")
	}

	if extractHeuristic {
		cfg.Extractor.Mode = "heuristic"
	}
	if !cmd.Flags().Changed("project-mode") {
		extractProjectMode = cfg.Answer.ProjectMode
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extractor.Timeout.Duration)
	defer cancel()

	chain := newExtractor(cfg, logging.New("extract"))
	defer chain.Close()
	ex, err := chain.Extract(ctx, text, cfg.Extractor.Keywords)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	res := extractResult{IsQuestion: ex.IsQuestion && ex.Question != "", Source: ex.Source}
	if res.IsQuestion {
		res.Question = ex.Question
		res.Route = question.Route(ex.Question, extractProjectMode)
	}
	return printExtraction(cmd.OutOrStdout(), res, extractJSON)
}

// readInput joins the arguments or reads all of r when there are none
func readInput(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printExtraction(w io.Writer, res extractResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.IsQuestion {
		fmt.Fprintf(w, "No question found (%s)\n", res.Source)
		return nil
	}
	fmt.Fprintf(w, "Question: %s\n", res.Question)
	fmt.Fprintf(w, "Route:    %s\n", res.Route)
	fmt.Fprintf(w, "Source:   %s\n", res.Source)
	return nil
}
