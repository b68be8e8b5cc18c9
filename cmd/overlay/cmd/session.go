// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     cmd
// Description: Setup session management commands
// Author:      Mike Stoffels with Claude
// Created:     2026-09-19
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/internal/overlay/setup"
	"github.com/msto63/overlay/pkg/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	setCV         string
	setJD         string
	setProject    string
	setProfile    string
	setDocumentID string
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage setup sessions",
	Long: `A setup session is a folder below <root>/Sessions holding the
SetupContext.json (CV, job description, project info, personal profile).
The archived question history is kept per session as well.

Examples:
  overlay session list
  overlay session new acme
  overlay session set acme --cv cv.md --jd job.txt
  overlay session show acme
  overlay session rename acme acme-2026
  overlay session copy acme-2026
  overlay session delete acme-2026-copy`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a session (default name: session-<timestamp>)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionNew,
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Rename a session and its archived history",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionRename,
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a session and its archived history",
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionDelete,
}

var sessionCopyCmd = &cobra.Command{
	Use:   "copy <name>",
	Short: "Copy a session folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionCopy,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print the setup context of a session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

var sessionSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Update the setup context from files",
	Long: `Reads the given files into the setup context of a session. Fields
without a flag keep their value. Use "-" to read a field from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionSet,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionNewCmd, sessionRenameCmd,
		sessionDeleteCmd, sessionCopyCmd, sessionShowCmd, sessionSetCmd)

	sessionSetCmd.Flags().StringVar(&setCV, "cv", "", "CV file")
	sessionSetCmd.Flags().StringVar(&setJD, "jd", "", "job description file")
	sessionSetCmd.Flags().StringVar(&setProject, "project", "", "project info file")
	sessionSetCmd.Flags().StringVar(&setProfile, "profile", "", "personal profile file")
	sessionSetCmd.Flags().StringVar(&setDocumentID, "document-id", "", "document id for answers")
}

// sessionEnv loads the config and the provider for session commands
func sessionEnv(cmd *cobra.Command) (*config.Config, *setup.Provider, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := setupLogging(cfg, false); err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return cfg, newProvider(cfg), nil
}

// selectSession switches the provider to the first argument when given
func selectSession(p *setup.Provider, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if err := setup.ValidateName(args[0]); err != nil {
		return err
	}
	p.SetSession(args[0])
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	cfg, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	sessions, err := provider.ListSessions()
	if err != nil {
		return err
	}

	counts := map[string]int{}
	if archive, err := openArchive(cfg); err == nil && archive != nil {
		defer archive.Close()
		if summaries, err := archive.Sessions(context.Background()); err == nil {
			for _, s := range summaries {
				counts[s.Name] = s.Count
			}
		}
	}

	if len(sessions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No sessions in %s\n", provider.SessionsRoot())
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tQUESTIONS\tUPDATED")
	for _, s := range sessions {
		marker := ""
		if strings.EqualFold(s.Name, provider.Session()) {
			marker = "*"
		}
		updated := "-"
		if !s.Updated.IsZero() {
			updated = s.Updated.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", marker, s.Name, counts[s.Name], updated)
	}
	return w.Flush()
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	_, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	name := setup.NewSessionName(time.Now())
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if err := setup.ValidateName(name); err != nil {
		return err
	}

	provider.SetSession(name)
	if _, err := os.Stat(provider.SessionFolder()); err == nil {
		return fmt.Errorf("session %q already exists", name)
	}
	if _, err := provider.Save(setup.Context{}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", name, provider.SessionFolder())
	return nil
}

func runSessionRename(cmd *cobra.Command, args []string) error {
	cfg, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	from, to := args[0], strings.TrimSpace(args[1])
	if err := provider.Rename(from, to); err != nil {
		return err
	}

	if err := withArchive(cfg, func(a *qna.Archive) error {
		return a.RenameSession(context.Background(), from, to)
	}); err != nil {
		return fmt.Errorf("session renamed but history not moved: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", from, to)
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	cfg, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	if err := provider.Delete(name); err != nil {
		return err
	}

	var removed int64
	if err := withArchive(cfg, func(a *qna.Archive) error {
		n, err := a.RemoveSession(context.Background(), name)
		removed = n
		return err
	}); err != nil {
		return fmt.Errorf("session deleted but history kept: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d archived questions)\n", name, removed)
	return nil
}

func runSessionCopy(cmd *cobra.Command, args []string) error {
	_, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	name, err := provider.Copy(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s\n", args[0], name)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	_, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	if err := selectSession(provider, args); err != nil {
		return err
	}

	ctx := provider.Load()
	out := struct {
		Session string        `yaml:"session"`
		Folder  string        `yaml:"folder"`
		Ready   bool          `yaml:"ready"`
		Context setup.Context `yaml:"context"`
	}{provider.Session(), provider.SessionFolder(), ctx.Ready(), ctx}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}

func runSessionSet(cmd *cobra.Command, args []string) error {
	_, provider, err := sessionEnv(cmd)
	if err != nil {
		return err
	}
	if err := selectSession(provider, args); err != nil {
		return err
	}

	ctx := provider.Load()
	fields := []struct {
		flag string
		path string
		dst  *string
	}{
		{"cv", setCV, &ctx.CV},
		{"jd", setJD, &ctx.JobDescription},
		{"project", setProject, &ctx.ProjectInfo},
		{"profile", setProfile, &ctx.PersonalProfile},
	}

	changed := false
	for _, f := range fields {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		text, err := readField(f.path, cmd)
		if err != nil {
			return fmt.Errorf("--%s: %w", f.flag, err)
		}
		*f.dst = text
		changed = true
	}
	if cmd.Flags().Changed("document-id") {
		ctx.DocumentID = strings.TrimSpace(setDocumentID)
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to set, use --cv, --jd, --project, --profile or --document-id")
	}

	saved, err := provider.Save(ctx)
	if err != nil {
		return err
	}
	state := "incomplete (CV and job description required)"
	if saved.Ready() {
		state = "ready"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved setup of %s: %s\n", provider.Session(), state)
	return nil
}

// readField reads a file, or stdin for "-"
func readField(path string, cmd *cobra.Command) (string, error) {
	if path == "-" {
		return readInput(nil, cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// withArchive runs fn against the archive when it is enabled
func withArchive(cfg *config.Config, fn func(*qna.Archive) error) error {
	archive, err := openArchive(cfg)
	if err != nil || archive == nil {
		return err
	}
	defer archive.Close()
	return fn(archive)
}
