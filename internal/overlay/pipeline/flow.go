package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/msto63/overlay/internal/overlay/answer"
	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/internal/overlay/question"
	"github.com/msto63/overlay/internal/overlay/setup"
	"github.com/msto63/overlay/pkg/core/errors"
)

// scheduleExtraction queues one extraction; requests coalesce while one
// is pending
func (p *Pipeline) scheduleExtraction() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Pipeline) extractLoop(ctx context.Context, r *run) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
			p.extractAuto(ctx)
		}
	}
}

func (p *Pipeline) autoLoop(ctx context.Context, r *run) {
	defer r.wg.Done()
	ticker := time.NewTicker(p.cfg.AutoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.shouldAutoExtract() {
				p.scheduleExtraction()
			}
		}
	}
}

// shouldAutoExtract applies the ticker rules: listening, no utterance in
// progress, enough text and new text since the last extraction
func (p *Pipeline) shouldAutoExtract() bool {
	if p.state.Current() != StateListening {
		return false
	}
	if p.transcript.HasPartial() {
		return false
	}
	n := p.transcript.Len()
	if n < p.cfg.MinChars {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return n > p.lastExtractLen
}

func (p *Pipeline) extractAuto(ctx context.Context) {
	window := p.transcript.Window(p.cfg.WindowChars)
	p.mu.Lock()
	p.lastExtractLen = p.transcript.Len()
	p.mu.Unlock()
	if strings.TrimSpace(window) == "" {
		return
	}

	q, elapsed, err := p.extract(ctx, window)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Question extraction failed", "error", err)
			p.emit(Event{Kind: EventError, Err: err.Error()})
		}
		return
	}
	if q == "" || q == p.LastQuestion() {
		return
	}
	if !p.deps.Dedup.Admit(q) {
		p.logger.Debug("Duplicate question skipped", "question", q)
		return
	}

	item := p.submit(q, qna.SourceAuto, qna.Context{}, elapsed)
	p.answers.Add(1)
	go func() {
		defer p.answers.Done()
		p.answer(p.baseCtx, item)
	}()
}

// extract returns the detected question or "" when the text holds none
func (p *Pipeline) extract(ctx context.Context, text string) (string, time.Duration, error) {
	ectx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	defer cancel()

	start := time.Now()
	ex, err := p.deps.Extractor.Extract(ectx, text, p.cfg.Keywords)
	elapsed := time.Since(start)
	if err != nil {
		return "", elapsed, err
	}
	q := strings.TrimSpace(ex.Question)
	if !ex.IsQuestion {
		q = ""
	}
	p.logger.Debug("Extraction finished", "source", ex.Source, "question", q, "elapsed", elapsed)
	return q, elapsed, nil
}

// submit records a pending QnA for q
func (p *Pipeline) submit(q string, source qna.Source, qctx qna.Context, extract time.Duration) qna.QnA {
	item := qna.New(q, source)
	item.Language = p.Language()
	item.Context = qctx
	item.Route = question.Route(q, p.cfg.ProjectMode)
	item.ProjectModeAtAnswer = p.cfg.ProjectMode
	item.QuestionNumber = p.deps.Store.Count() + 1
	item.Timings.ExtractMs = extract.Milliseconds()
	item = p.deps.Store.Add(item)

	p.mu.Lock()
	p.lastQuestion = q
	p.mu.Unlock()

	p.logger.Info("Question detected", "number", item.QuestionNumber, "source", string(source), "route", item.Route)
	p.emit(Event{Kind: EventQuestion, Question: q, Item: &item})
	return item
}

func (p *Pipeline) loadContext() setup.Context {
	if p.deps.Context == nil {
		return setup.Context{}
	}
	return p.deps.Context.Load()
}

// answer generates the answer for item and stores the outcome
func (p *Pipeline) answer(ctx context.Context, item qna.QnA) qna.QnA {
	sc := p.loadContext()
	in := answer.Input{
		Question:        item.Question,
		Language:        item.Language,
		CV:              sc.CV,
		JobDescription:  sc.JobDescription,
		PersonalProfile: sc.PersonalProfile,
		ProjectInfo:     sc.ProjectInfo,
		History:         p.deps.Store.AnsweredPairs(p.cfg.HistoryPairs),
		IsFollowUp:      item.Source == qna.SourceFollowUp,
		ImageDataURL:    item.Context.ImageDataURL,
		ClipboardText:   item.Context.ClipboardText,
		DocumentID:      sc.DocumentID,
		QuestionNumber:  item.QuestionNumber,
		Route:           item.Route,
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AnswerTimeout)
	start := time.Now()
	res, err := p.deps.Generator.Generate(actx, in)
	cancel()
	elapsed := time.Since(start).Milliseconds()
	text := strings.TrimSpace(res.Answer)

	updated, uerr := p.deps.Store.Update(item.ID, func(q *qna.QnA) {
		q.Timings.AnswerMs = elapsed
		if err != nil || text == "" {
			q.Status = qna.StatusFailed
			return
		}
		q.Answer = text
		q.Status = qna.StatusAnswered
		if p.deps.Pusher != nil {
			q.DocPush = qna.DocPushQueued
		}
	})
	if uerr != nil {
		// removed by a clear while the answer was generated
		p.logger.Debug("Answered item no longer stored", "id", item.ID)
		return item
	}
	if err != nil {
		p.logger.Warn("Answer generation failed", "number", item.QuestionNumber, "error", err)
	}
	p.emit(Event{Kind: EventItem, Item: &updated})

	if updated.Status == qna.StatusAnswered && p.deps.Pusher != nil {
		updated = p.push(ctx, updated)
	}
	return updated
}

func (p *Pipeline) push(ctx context.Context, item qna.QnA) qna.QnA {
	status := qna.DocPushOK
	if err := p.deps.Pusher.Send(ctx, item.Question); err != nil {
		p.logger.Warn("Backend push failed", "number", item.QuestionNumber, "error", err)
		status = qna.DocPushError
	}
	updated, err := p.deps.Store.Update(item.ID, func(q *qna.QnA) {
		q.DocPush = status
	})
	if err != nil {
		return item
	}
	p.emit(Event{Kind: EventItem, Item: &updated})
	return updated
}

// Capture runs the manual flow on the whole transcript: extraction,
// answer and push. It returns false when no question was found.
func (p *Pipeline) Capture(ctx context.Context) (qna.QnA, bool, error) {
	const op = "pipeline.Capture"

	text := strings.TrimSpace(p.transcript.Text())
	if text == "" {
		return qna.QnA{}, false, errors.New("transcript is empty").
			WithCode(errors.CodeInvalidState).
			WithOp(op)
	}
	if !p.loadContext().Ready() {
		return qna.QnA{}, false, errors.New("setup context needs a CV and a job description").
			WithCode(errors.CodeNotConfigured).
			WithOp(op)
	}

	var qctx qna.Context
	if p.deps.Clipboard != nil {
		clip, err := p.deps.Clipboard()
		if err != nil {
			p.logger.Debug("Clipboard unavailable", "error", err)
		} else if strings.TrimSpace(clip) != "" {
			qctx.ClipboardText = clip
		}
	}

	q, elapsed, err := p.extract(ctx, text)
	if err != nil {
		return qna.QnA{}, false, errors.Wrap(err, "question extraction failed").WithOp(op)
	}
	if q == "" {
		p.logger.Info("Capture found no question")
		return qna.QnA{}, false, nil
	}

	p.deps.Dedup.Remember(q)
	item := p.submit(q, qna.SourceCapture, qctx, elapsed)
	return p.answer(ctx, item), true, nil
}

// ClearTranscript clears transcript and partial, drops unanswered items
// and falls back to the last answered question
func (p *Pipeline) ClearTranscript() {
	p.transcript.Clear()
	removed := p.deps.Store.RemoveWhere(func(q qna.QnA) bool {
		return q.Status != qna.StatusAnswered
	})

	last := ""
	if item, ok := p.deps.Store.LastAnswered(); ok {
		last = item.Question
	}
	p.mu.Lock()
	p.lastQuestion = last
	p.lastExtractLen = 0
	p.mu.Unlock()
	p.seedDedup()

	p.logger.Info("Transcript cleared", "removed", removed)
	p.emit(Event{Kind: EventCleared, Question: last})
}

// seedDedup loads the stored questions into the deduper, oldest first
func (p *Pipeline) seedDedup() {
	qs := p.deps.Store.Questions(0)
	for i, j := 0, len(qs)-1; i < j; i, j = i+1, j-1 {
		qs[i], qs[j] = qs[j], qs[i]
	}
	p.deps.Dedup.Seed(qs)
}
