package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportLimit    int
	exportOutput   string
	exportAnswered bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived questions of a session as YAML",
	Long: `Writes the archived question history of the active session (or the one
given with --session) as YAML, newest first.

Examples:
  overlay export
  overlay export -s acme --answered -o acme.yaml
  overlay export --limit 20`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum number of items (0 = all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportAnswered, "answered", false, "only answered questions")
}

// exportDocument is the YAML layout of an export
type exportDocument struct {
	Session    string    `yaml:"session"`
	ExportedAt time.Time `yaml:"exportedAt"`
	Count      int       `yaml:"count"`
	Items      []qna.QnA `yaml:"items"`
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Archive.Enabled {
		return fmt.Errorf("archive is disabled in the configuration")
	}
	archive, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer archive.Close()

	session := newProvider(cfg).Session()
	items, err := archive.List(context.Background(), session, exportLimit)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	if exportAnswered {
		items = answeredOnly(items)
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeExport(out, exportDocument{
		Session:    session,
		ExportedAt: time.Now().UTC(),
		Count:      len(items),
		Items:      items,
	})
}

func answeredOnly(items []qna.QnA) []qna.QnA {
	out := items[:0]
	for _, it := range items {
		if it.Status == qna.StatusAnswered {
			out = append(out, it)
		}
	}
	return out
}

func writeExport(w io.Writer, doc exportDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return enc.Close()
}
