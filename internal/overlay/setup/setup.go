// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     setup
// Description: Per-session interview context (CV, job description, ...)
// Author:      Mike Stoffels with Claude
// Created:     2026-09-16
// License:     MIT
// ============================================================================

package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/logging"
)

const (
	// DefaultSession is used when no session name is given
	DefaultSession = "default"

	contextFile = "SetupContext.json"
)

// Context is the candidate material used for answers
type Context struct {
	CV              string    `json:"Cv" yaml:"cv"`
	JobDescription  string    `json:"JobDescription" yaml:"jobDescription"`
	ProjectInfo     string    `json:"ProjectInfo" yaml:"projectInfo"`
	PersonalProfile string    `json:"PersonalProfile" yaml:"personalProfile"`
	DocumentID      string    `json:"DocumentId" yaml:"documentId"`
	UpdatedAt       time.Time `json:"UpdatedAt" yaml:"updatedAt"`
}

// Ready reports whether CV and job description are present
func (c Context) Ready() bool {
	return strings.TrimSpace(c.CV) != "" && strings.TrimSpace(c.JobDescription) != ""
}

// Provider loads and saves the context of the current session below
// <root>/Sessions/<session>/
type Provider struct {
	mu      sync.Mutex
	root    string
	session string
	cache   Context
	loaded  bool
	logger  *logging.Logger
}

// NewProvider creates a provider rooted at root for the default session
func NewProvider(root string) *Provider {
	return &Provider{
		root:    root,
		session: DefaultSession,
		logger:  logging.New("setup"),
	}
}

// Session returns the current session name
func (p *Provider) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// SetSession switches sessions; blank names select the default. Names that
// are not valid folder names (see ValidateName) also fall back to the
// default so the session folder stays below SessionsRoot. The next Load
// reads from disk.
func (p *Provider) SetSession(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSession
	}
	if err := ValidateName(name); err != nil {
		p.logger.Warn("Invalid session name, using default", "name", name, "error", err)
		name = DefaultSession
	}
	p.mu.Lock()
	p.session = name
	p.loaded = false
	p.cache = Context{}
	p.mu.Unlock()
}

// SessionsRoot returns <root>/Sessions
func (p *Provider) SessionsRoot() string {
	return filepath.Join(p.root, "Sessions")
}

// SessionFolder returns the current session folder without creating it
func (p *Provider) SessionFolder() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folderLocked()
}

func (p *Provider) folderLocked() string {
	return filepath.Join(p.SessionsRoot(), p.session)
}

// Load returns the cached context, reading it on first use. Missing or
// unreadable files yield an empty context.
func (p *Provider) Load() Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.cache
	}
	p.loaded = true
	p.cache = Context{}

	path := filepath.Join(p.folderLocked(), contextFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("Failed to read setup context", "path", path, "error", err)
		}
		return p.cache
	}
	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		p.logger.Warn("Invalid setup context", "path", path, "error", err)
		return p.cache
	}
	p.cache = ctx
	return p.cache
}

// Save stamps UpdatedAt, caches ctx and writes it as indented JSON,
// creating the session folder
func (p *Provider) Save(ctx Context) (Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx.UpdatedAt = time.Now().UTC()
	p.cache = ctx
	p.loaded = true

	folder := p.folderLocked()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return ctx, fmt.Errorf("failed to create session folder: %w", err)
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return ctx, fmt.Errorf("failed to encode setup context: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, contextFile), data, 0644); err != nil {
		return ctx, fmt.Errorf("failed to write setup context: %w", err)
	}
	p.logger.Info("Setup context saved", "session", p.session)
	return ctx, nil
}

// SessionInfo describes a stored session
type SessionInfo struct {
	Name    string    `json:"name" yaml:"name"`
	Updated time.Time `json:"updated" yaml:"updated"`
	Path    string    `json:"path" yaml:"path"`
}

// ListSessions returns the session folders sorted by name. Updated is
// zero when a folder has no context file.
func (p *Provider) ListSessions() ([]SessionInfo, error) {
	entries, err := os.ReadDir(p.SessionsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []SessionInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(p.SessionsRoot(), e.Name())
		info := SessionInfo{Name: e.Name(), Path: dir}
		if st, err := os.Stat(filepath.Join(dir, contextFile)); err == nil {
			info.Updated = st.ModTime()
		}
		out = append(out, info)
	}
	// os.ReadDir returns entries sorted by filename
	return out, nil
}

// ValidateName checks a session name for use as a folder name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name cannot be empty").WithCode(errors.CodeInvalidInput)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:*?"<>|`) {
		return errors.New("name contains invalid characters").WithCode(errors.CodeInvalidInput)
	}
	return nil
}

// NewSessionName returns session-<yyyyMMdd-HHmmss>
func NewSessionName(at time.Time) string {
	return "session-" + at.Format("20060102-150405")
}

func (p *Provider) existing(name string) (string, bool) {
	sessions, _ := p.ListSessions()
	for _, s := range sessions {
		if strings.EqualFold(s.Name, name) {
			return s.Path, true
		}
	}
	return "", false
}

// Rename moves a session folder. The current session follows the rename.
func (p *Provider) Rename(from, to string) error {
	to = strings.TrimSpace(to)
	if err := ValidateName(to); err != nil {
		return err
	}
	src, ok := p.existing(from)
	if !ok {
		return errors.Newf("session %q not found", from).WithCode(errors.CodeNotFound)
	}
	if !strings.EqualFold(from, to) {
		if _, taken := p.existing(to); taken {
			return errors.Newf("a session named %q already exists", to).WithCode(errors.CodeInvalidInput)
		}
	}
	if err := os.Rename(src, filepath.Join(p.SessionsRoot(), to)); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	if p.Session() == from {
		p.SetSession(to)
	}
	return nil
}

// Delete removes a session folder. Deleting the current session resets
// the cache.
func (p *Provider) Delete(name string) error {
	dir, ok := p.existing(name)
	if !ok {
		return errors.Newf("session %q not found", name).WithCode(errors.CodeNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if p.Session() == name {
		p.SetSession(name)
	}
	return nil
}

// Copy duplicates a session as <name>-copy, <name>-copy2, ... and returns
// the new name
func (p *Provider) Copy(name string) (string, error) {
	src, ok := p.existing(name)
	if !ok {
		return "", errors.Newf("session %q not found", name).WithCode(errors.CodeNotFound)
	}

	base := name + "-copy"
	candidate := base
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(p.SessionsRoot(), candidate)); os.IsNotExist(err) {
			break
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	if err := copyDir(src, filepath.Join(p.SessionsRoot(), candidate)); err != nil {
		return "", fmt.Errorf("failed to copy session: %w", err)
	}
	return candidate, nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
