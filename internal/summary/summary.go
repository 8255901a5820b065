// Package summary writes the short personalised note shown above the
// recommendations.
package summary

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/llm"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/metrics"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/qloo"
)

const (
	systemPrompt = "You are a compassionate lifestyle coach and emotional intelligence expert who creates " +
		"deeply personalized, psychologically aware summaries that make people feel understood and cared for."

	maxTokens   = 200
	temperature = 0.8

	namesPerCategory = 2
)

//go:embed prompts/summary.tmpl
var summaryPrompt string

var summaryTemplate = template.Must(template.New("summary").Parse(summaryPrompt))

// Summarizer abstracts summary generation for testing.
type Summarizer interface {
	Summarize(ctx context.Context, moodText string, analysis mood.Analysis, set map[catalog.Category][]qloo.Item) (string, error)
}

// Generator implements Summarizer with a chat-completion model.
type Generator struct {
	llm llm.Completer
}

// NewGenerator creates a new summary generator.
func NewGenerator(completer llm.Completer) *Generator {
	return &Generator{llm: completer}
}

// Fallback is the canned summary used when the model cannot produce one.
func Fallback(moodText string) string {
	return "Your personalized content collection has been carefully curated to support your current " +
		"emotional journey: " + moodText + ". Each recommendation works together to provide exactly " +
		"what you need right now. Trust the process and enjoy this thoughtfully designed experience!"
}

// Summarize asks the model for a 3-4 sentence summary of the collection.
// On failure the error is returned together with Fallback(moodText).
func (g *Generator) Summarize(ctx context.Context, moodText string, analysis mood.Analysis, set map[catalog.Category][]qloo.Item) (string, error) {
	prompt, err := BuildPrompt(moodText, analysis, set)
	if err != nil {
		return Fallback(moodText), err
	}

	text, err := g.llm.Complete(ctx, llm.Request{
		Purpose:     "summary",
		System:      systemPrompt,
		User:        prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("summary", metrics.OutcomeFallback).Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("Summary generation failed, using fallback")
		return Fallback(moodText), fmt.Errorf("generating summary: %w", err)
	}

	metrics.LLMRequestsTotal.WithLabelValues("summary", metrics.OutcomeSuccess).Inc()
	return text, nil
}

// Digest lists up to two item names per category that has results, in
// catalog order: "Movie: A, B; Book: C".
func Digest(set map[catalog.Category][]qloo.Item) string {
	var parts []string
	for _, c := range catalog.Categories() {
		items := set[c]
		if len(items) == 0 {
			continue
		}
		if len(items) > namesPerCategory {
			items = items[:namesPerCategory]
		}

		names := make([]string, 0, len(items))
		for _, item := range items {
			name := item.Name
			if name == "" {
				name = "Unknown"
			}
			names = append(names, name)
		}
		parts = append(parts, c.Title()+": "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "; ")
}

type promptData struct {
	Mood           string
	Interpretation string
	Needs          string
	Strategy       string
	Digest         string
}

// BuildPrompt renders the summary instruction.
func BuildPrompt(moodText string, analysis mood.Analysis, set map[catalog.Category][]qloo.Item) (string, error) {
	data := promptData{
		Mood:           moodText,
		Interpretation: analysis.Interpretation,
		Needs:          analysis.PsychologicalNeeds,
		Strategy:       analysis.OverallStrategy,
		Digest:         Digest(set),
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering summary prompt: %w", err)
	}
	return buf.String(), nil
}

var _ Summarizer = (*Generator)(nil)
