// Package pipeline runs one mood submission end to end: analysis,
// recommendation fetches and the closing summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/metrics"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/qloo"
	"github.com/justestif/go-moodflow/internal/summary"
)

// ErrEmptyMood is returned when the submitted mood is blank.
var ErrEmptyMood = errors.New("mood description is empty")

// State is the position of a submission in the pipeline.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateFetchingRecommendations
	StateSummarizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateFetchingRecommendations:
		return "fetching_recommendations"
	case StateSummarizing:
		return "summarizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProgressFunc is called on every state change and after each fetch.
// done and total count recommendation fetches.
type ProgressFunc func(state State, done, total int)

// Submission is the user input for one run.
type Submission struct {
	Mood              string   `json:"mood" validate:"required,max=2000"`
	AdditionalContext string   `json:"additional_context,omitempty" validate:"max=2000"`
	TimeContext       string   `json:"time_context" validate:"omitempty,oneof=Morning Afternoon Evening 'Late Night'"`
	Interests         []string `json:"interests" validate:"max=5,dive,oneof=Movies Music Books Podcasts 'Travel Ideas'"`
}

// Pipeline wires the three external steps together.
type Pipeline struct {
	analyzer   mood.Analyzer
	fetcher    qloo.Fetcher
	summarizer summary.Summarizer
	fetchDelay time.Duration
	progress   ProgressFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetchDelay sets a pause between consecutive recommendation fetches.
func WithFetchDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		p.fetchDelay = d
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// New creates a new submission pipeline.
func New(analyzer mood.Analyzer, fetcher qloo.Fetcher, summarizer summary.Summarizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:   analyzer,
		fetcher:    fetcher,
		summarizer: summarizer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one submission. Step failures never abort the run: they are
// recorded as notices and the step's default is used instead. The only
// errors returned are ErrEmptyMood and context cancellation, in which case
// no Session is produced.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (*Session, error) {
	if strings.TrimSpace(sub.Mood) == "" {
		metrics.SubmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyMood
	}

	start := time.Now()
	log := logging.Ctx(ctx).With().Str("time_context", sub.TimeContext).Strs("interests", sub.Interests).Logger()
	log.Info().Msg("Submission started")

	sess := &Session{
		MoodText:          sub.Mood,
		AdditionalContext: sub.AdditionalContext,
		TimeContext:       sub.TimeContext,
		Interests:         append([]string(nil), sub.Interests...),
	}

	// Analyze
	p.report(StateAnalyzing, 0, 0)
	analysis, err := p.analyzer.Analyze(ctx, mood.Request{
		Mood:              sub.Mood,
		AdditionalContext: sub.AdditionalContext,
		TimeContext:       sub.TimeContext,
		Interests:         sub.Interests,
	})
	if err := p.canceled(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		log.Warn().Err(err).Msg("Mood analysis degraded to fallback")
		sess.addNotice(StageAnalyze, "", "We couldn't reach the mood analysis service, so a balanced default profile was used.")
	}
	sess.Analysis = analysis

	// Fetch
	targets := FetchTargets(analysis, sub.Interests)
	sess.Recommendations = make(map[catalog.Category][]qloo.Item, len(targets))
	p.report(StateFetchingRecommendations, 0, len(targets))

	for i, c := range targets {
		if i > 0 && p.fetchDelay > 0 {
			if err := sleep(ctx, p.fetchDelay); err != nil {
				return nil, p.cancel(err)
			}
		}

		items, err := p.fetcher.Fetch(ctx, c, analysis.SelectedTags[c])
		if err := p.canceled(ctx); err != nil {
			return nil, err
		}
		if err != nil {
			log.Warn().Err(err).Str("category", string(c)).Msg("Recommendation fetch degraded to empty list")
			sess.addNotice(StageFetch, c, fmt.Sprintf("Couldn't load %s right now.", strings.ToLower(c.DisplayName())))
		}
		if items == nil {
			items = []qloo.Item{}
		}
		sess.Recommendations[c] = items
		p.report(StateFetchingRecommendations, i+1, len(targets))
	}

	// Summarize
	p.report(StateSummarizing, len(targets), len(targets))
	text, err := p.summarizer.Summarize(ctx, sub.Mood, analysis, sess.Recommendations)
	if err := p.canceled(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		log.Warn().Err(err).Msg("Summary degraded to fallback")
		sess.addNotice(StageSummarize, "", "The personalised summary is unavailable, so a general note is shown instead.")
	}
	if strings.TrimSpace(text) == "" {
		text = summary.Fallback(sub.Mood)
	}
	sess.Summary = text

	sess.CompletedAt = time.Now()
	p.report(StateDone, len(targets), len(targets))

	status := "completed"
	if sess.Degraded() {
		status = "degraded"
	}
	metrics.SubmissionsTotal.WithLabelValues(status).Inc()
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Int("fetched", len(targets)).
		Int("notices", len(sess.Notices)).
		Dur("elapsed", time.Since(start)).
		Msg("Submission finished")

	return sess, nil
}

// FetchTargets returns the categories to fetch: those with a selected tag
// whose interest the user declared, in catalog order.
func FetchTargets(analysis mood.Analysis, interests []string) []catalog.Category {
	wanted := catalog.InterestCategories(interests)

	var out []catalog.Category
	for _, c := range analysis.SelectedCategories() {
		if wanted[c] {
			out = append(out, c)
		}
	}
	return out
}

func (s *Session) addNotice(stage Stage, c catalog.Category, msg string) {
	s.Notices = append(s.Notices, Notice{Stage: stage, Category: c, Message: msg})
}

func (p *Pipeline) report(state State, done, total int) {
	if p.progress != nil {
		p.progress(state, done, total)
	}
}

func (p *Pipeline) canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return p.cancel(err)
	}
	return nil
}

func (p *Pipeline) cancel(err error) error {
	metrics.SubmissionsTotal.WithLabelValues("canceled").Inc()
	p.report(StateIdle, 0, 0)
	return fmt.Errorf("submission canceled: %w", err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
