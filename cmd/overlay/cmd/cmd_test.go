package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/internal/overlay/question"
	"github.com/msto63/overlay/pkg/core/config"
	"github.com/msto63/overlay/pkg/core/logging"
	"gopkg.in/yaml.v3"
)

func TestReadInput(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"args joined", []string{" what is", "your name? "}, "ignored", "what is your name?"},
		{"stdin", nil, "  tell me about yourself\n", "tell me about yourself"},
		{"empty", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(tt.args, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("readInput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("readInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintExtraction(t *testing.T) {
	var buf bytes.Buffer
	res := extractResult{IsQuestion: true, Question: "Why this role?", Route: "default", Source: "heuristic"}
	if err := printExtraction(&buf, res, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Question: Why this role?") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if err := printExtraction(&buf, extractResult{Source: "filter"}, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No question found (filter)") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if err := printExtraction(&buf, res, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"isQuestion": true`) {
		t.Errorf("unexpected JSON %q", buf.String())
	}
}

func TestWriteExport(t *testing.T) {
	answered := qna.New("Why Go?", qna.SourceAuto)
	answered.Status = qna.StatusAnswered
	answered.Answer = "Simplicity."
	pending := qna.New("And Rust?", qna.SourceCapture)

	items := answeredOnly([]qna.QnA{answered, pending})
	if len(items) != 1 || items[0].ID != answered.ID {
		t.Fatalf("answeredOnly() = %+v", items)
	}

	var buf bytes.Buffer
	if err := writeExport(&buf, exportDocument{Session: "acme", Count: 1, Items: items}); err != nil {
		t.Fatal(err)
	}

	var doc exportDocument
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid YAML: %v", err)
	}
	if doc.Session != "acme" || len(doc.Items) != 1 || doc.Items[0].Answer != "Simplicity." {
		t.Errorf("unexpected export %+v", doc)
	}
	if !strings.Contains(buf.String(), "question: Why Go?") {
		t.Errorf("expected camelCase yaml keys, got:\n%s", buf.String())
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlay.toml")
	cfgText := "[general]\ndata_dir = \"" + filepath.ToSlash(dir) + "\"\nlog_level = \"error\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgText), 0644); err != nil {
		t.Fatal(err)
	}
	cv := filepath.Join(dir, "cv.md")
	jd := filepath.Join(dir, "jd.txt")
	os.WriteFile(cv, []byte("Ten years of Go\n"), 0644)
	os.WriteFile(jd, []byte("Backend engineer"), 0644)

	if out := execute(t, "--config", cfgPath, "session", "new", "acme"); !strings.Contains(out, "Created session acme") {
		t.Errorf("new: %q", out)
	}
	if out := execute(t, "--config", cfgPath, "session", "set", "acme", "--cv", cv, "--jd", jd); !strings.Contains(out, "ready") {
		t.Errorf("set: %q", out)
	}

	out := execute(t, "--config", cfgPath, "session", "show", "acme")
	var shown struct {
		Session string `yaml:"session"`
		Ready   bool   `yaml:"ready"`
		Context struct {
			CV string `yaml:"cv"`
		} `yaml:"context"`
	}
	if err := yaml.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("show output is not YAML: %v\n%s", err, out)
	}
	if shown.Session != "acme" || !shown.Ready || shown.Context.CV != "Ten years of Go" {
		t.Errorf("show = %+v", shown)
	}

	execute(t, "--config", cfgPath, "session", "rename", "acme", "acme-2026")
	out = execute(t, "--config", cfgPath, "session", "list")
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		names = append(names, strings.Fields(strings.TrimPrefix(line, "*"))[0])
	}
	if len(names) != 1 || names[0] != "acme-2026" {
		t.Errorf("list after rename = %v\n%s", names, out)
	}

	execute(t, "--config", cfgPath, "session", "delete", "acme-2026")
	if _, err := os.Stat(filepath.Join(dir, "Sessions", "acme-2026")); !os.IsNotExist(err) {
		t.Errorf("session folder still present: %v", err)
	}
}

func TestSessionShowRejectsEscapingName(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlay.toml")
	cfgText := "[general]\ndata_dir = \"" + filepath.ToSlash(dir) + "\"\nlog_level = \"error\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgText), 0644); err != nil {
		t.Fatal(err)
	}
	cv := filepath.Join(dir, "cv.md")
	os.WriteFile(cv, []byte("x"), 0644)

	for _, args := range [][]string{
		{"session", "show", "../x"},
		{"session", "set", "../x", "--cv", cv},
	} {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		if err := rootCmd.Execute(); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "x")); !os.IsNotExist(err) {
		t.Errorf("session data written outside the sessions folder: %v", err)
	}
}

func TestNewExtractor(t *testing.T) {
	cfg := config.Default()
	cfg.Extractor.Mode = "heuristic"
	chain := newExtractor(cfg, logging.Nop())
	if chain.Mode() != question.SourceHeuristic {
		t.Errorf("heuristic mode = %q", chain.Mode())
	}
	chain.Close()

	cfg.Extractor.Mode = "remote"
	cfg.Extractor.APIKey = "sk-test"
	chain = newExtractor(cfg, logging.Nop())
	defer chain.Close()
	if _, ok := chain.Remote.(*question.Cached); !ok {
		t.Errorf("remote extractor = %T, want the cached wrapper", chain.Remote)
	}
}
