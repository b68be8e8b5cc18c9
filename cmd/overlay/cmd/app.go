// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     cmd
// Description: Wiring of capture, transcription, extraction and storage
// Author:      Mike Stoffels with Claude
// Created:     2026-09-19
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"path/filepath"

	"github.com/msto63/overlay/internal/overlay/answer"
	"github.com/msto63/overlay/internal/overlay/audio"
	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/push"
	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/internal/overlay/question"
	"github.com/msto63/overlay/internal/overlay/setup"
	"github.com/msto63/overlay/internal/overlay/stt"
	"github.com/msto63/overlay/pkg/core/cache"
	"github.com/msto63/overlay/pkg/core/config"
	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/health"
	"github.com/msto63/overlay/pkg/core/logging"
	"github.com/msto63/overlay/pkg/core/version"
)

// app bundles the long-lived components of a run
type app struct {
	cfg       *config.Config
	provider  *setup.Provider
	store     *qna.Store
	archive   *qna.Archive
	extractor *question.Chain
	pipeline  *pipeline.Pipeline
	health    *health.Registry
	logger    *logging.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		provider: newProvider(cfg),
		store:    qna.NewStore(),
		logger:   logging.New("overlay"),
	}

	archive, err := openArchive(cfg)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		a.archive = archive
		items, err := archive.List(ctx, a.provider.Session(), 0)
		if err != nil {
			archive.Close()
			return nil, errors.Wrap(err, "failed to restore session history").WithCode(errors.CodeDatabaseError)
		}
		a.store.Restore(items)
		a.store.SetMirror(archive.Mirror(a.provider.Session()))
		a.logger.Info("Session history restored", "session", a.provider.Session(), "items", len(items))
	}

	src, monitor, err := openSources(cfg)
	if err != nil {
		a.closeArchive()
		return nil, err
	}

	a.extractor = newExtractor(cfg, a.logger)
	deps := pipeline.Deps{
		Source:     src,
		Monitor:    monitor,
		Recognizer: newRecognizer(cfg),
		Extractor:  a.extractor,
		Generator:  answer.Stub{},
		Store:      a.store,
		Context:    a.provider,
		Dedup:      question.NewDeduper(cfg.Extractor.DedupThreshold, cfg.Extractor.DedupWindow),
		Clipboard:  pipeline.SystemClipboard,
	}
	if cfg.Push.Enabled {
		deps.Pusher = push.NewClient(push.Config{
			URL:       cfg.Push.URL,
			APIKey:    cfg.Push.APIKey,
			SessionID: cfg.Push.SessionID,
			Timeout:   cfg.Push.Timeout.Duration,
		})
	}

	p, err := pipeline.New(pipelineConfig(cfg, a.provider), deps)
	if err != nil {
		src.Close()
		if monitor != nil {
			monitor.Close()
		}
		a.extractor.Close()
		a.closeArchive()
		return nil, err
	}
	a.pipeline = p
	a.health = a.newHealth()
	return a, nil
}

func newProvider(cfg *config.Config) *setup.Provider {
	provider := setup.NewProvider(cfg.Session.Root)
	provider.SetSession(cfg.Session.Name)
	return provider
}

// openArchive returns nil when the archive is disabled
func openArchive(cfg *config.Config) (*qna.Archive, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	archive, err := qna.OpenArchive(cfg.Archive.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive").WithCode(errors.CodeDatabaseError)
	}
	return archive, nil
}

// openSources picks the transcribed source and the level-only monitor.
// The loopback is transcribed when enabled; the microphone then only feeds
// the meter. Without loopback the microphone is transcribed.
func openSources(cfg *config.Config) (audio.Source, audio.Source, error) {
	var loopback, mic audio.Source

	if cfg.Audio.Loopback {
		l, err := audio.NewLoopback(audio.DefaultLoopbackConfig())
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open loopback capture").WithCode(errors.CodeDeviceError)
		}
		loopback = l
	}
	if cfg.Audio.Microphone {
		micCfg := audio.DefaultMicrophoneConfig()
		micCfg.DeviceName = cfg.Audio.InputDevice
		m, err := audio.NewMicrophone(micCfg)
		if err != nil {
			if loopback != nil {
				loopback.Close()
			}
			return nil, nil, errors.Wrap(err, "failed to open microphone").WithCode(errors.CodeDeviceError)
		}
		mic = m
	}

	switch {
	case loopback != nil:
		return loopback, mic, nil
	case mic != nil:
		return mic, nil, nil
	default:
		return nil, nil, errors.New("no audio source enabled").WithCode(errors.CodeNotConfigured)
	}
}

func newRecognizer(cfg *config.Config) *stt.StreamingRecognizer {
	return stt.NewStreamingRecognizer(stt.StreamingConfig{
		URL:           cfg.STT.URL,
		APIKey:        cfg.STT.APIKey,
		Model:         cfg.STT.Model,
		Languages:     cfg.STT.Languages,
		EndpointingMs: cfg.STT.EndpointingMs,
		Interim:       cfg.STT.Interim,
		KeepAlive:     cfg.STT.KeepAlive.Duration,
	})
}

// newExtractor builds the extraction chain. A remote classifier that cannot
// be created leaves the heuristic in charge.
func newExtractor(cfg *config.Config, logger *logging.Logger) *question.Chain {
	if !cfg.RemoteExtraction() {
		return question.NewChain(nil)
	}
	remote, err := question.NewOpenAIExtractor(question.OpenAIConfig{
		APIKey:      cfg.Extractor.APIKey,
		BaseURL:     cfg.Extractor.BaseURL,
		Model:       cfg.Extractor.Model,
		Temperature: cfg.Extractor.Temperature,
		Timeout:     cfg.Extractor.Timeout.Duration,
	})
	if err != nil {
		logger.Warn("Remote extraction unavailable, using heuristic", "error", err)
		return question.NewChain(nil)
	}
	results := cache.New[question.Extraction](cache.DefaultConfig())
	return question.NewChain(question.NewCached(remote, results))
}

func pipelineConfig(cfg *config.Config, provider *setup.Provider) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Language = cfg.STT.Language
	pc.BufferDuration = cfg.Audio.Buffer.Duration
	pc.Debounce = cfg.STT.Debounce.Duration
	pc.AutoInterval = cfg.Extractor.AutoInterval.Duration
	pc.MinChars = cfg.Extractor.MinChars
	pc.WindowChars = cfg.Extractor.WindowChars
	pc.Keywords = cfg.Extractor.Keywords
	pc.HistoryPairs = cfg.Answer.HistoryPairs
	pc.ProjectMode = cfg.Answer.ProjectMode
	pc.ExtractTimeout = cfg.Extractor.Timeout.Duration
	pc.AnswerTimeout = cfg.Answer.Timeout.Duration
	pc.VADMode = cfg.Audio.VADMode
	if cfg.Audio.RecordWAV {
		pc.RecordDir = filepath.Join(provider.SessionFolder(), "recordings")
	}
	return pc
}

func (a *app) newHealth() *health.Registry {
	reg := health.NewRegistry(version.Name, version.Version)
	reg.Register(health.ConfiguredCheck("stt", a.cfg.STT.APIKey, "STT API key not set"))
	reg.RegisterFunc("extractor", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{Name: "extractor", Status: health.StatusHealthy, Message: a.pipeline.ExtractorMode()}
	})
	reg.Register(health.FlagCheck("capture", a.pipeline.Running, health.StatusDegraded, "capture stopped"))
	reg.Register(health.FlagCheck("setup", func() bool { return a.provider.Load().Ready() },
		health.StatusDegraded, "CV or job description missing"))
	reg.Register(health.GaugeCheck("qna_items", a.store.Count))
	return reg
}

func (a *app) closeArchive() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("Failed to close archive", "error", err)
		}
	}
}

// Close stops the pipeline and releases devices, the extraction cache and
// the archive
func (a *app) Close() {
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			a.logger.Warn("Failed to close pipeline", "error", err)
		}
	}
	if a.extractor != nil {
		a.extractor.Close()
	}
	a.closeArchive()
}
