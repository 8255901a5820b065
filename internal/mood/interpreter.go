package mood

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/goccy/go-json"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/llm"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/metrics"
)

const (
	systemPrompt = "You are an expert psychologist and content curator who understands how different media " +
		"affects human emotions and psychological states. You select content that genuinely helps people " +
		"based on their current emotional needs."

	maxTokens   = 800
	temperature = 0.7

	allContentTypes = "all content types"
)

// ErrMalformedResponse is returned when the model reply is not the expected JSON document.
var ErrMalformedResponse = errors.New("malformed mood analysis response")

//go:embed prompts/analysis.tmpl
var analysisPrompt string

var analysisTemplate = template.Must(template.New("analysis").Parse(analysisPrompt))

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// Request describes one mood submission.
type Request struct {
	Mood              string
	AdditionalContext string
	TimeContext       string
	Interests         []string
}

// FullMood returns the mood text with any additional context appended.
func (r Request) FullMood() string {
	if strings.TrimSpace(r.AdditionalContext) == "" {
		return r.Mood
	}
	return r.Mood + " Additional context: " + r.AdditionalContext
}

// Analyzer abstracts mood analysis for testing.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Analysis, error)
}

// Interpreter implements Analyzer with a chat-completion model.
type Interpreter struct {
	llm llm.Completer
}

// NewInterpreter creates a new mood interpreter.
func NewInterpreter(completer llm.Completer) *Interpreter {
	return &Interpreter{llm: completer}
}

// Analyze asks the model to interpret the mood and pick one tag per category.
// It always returns a well-formed Analysis: on any failure the error is
// returned together with Fallback for the submitted mood.
func (i *Interpreter) Analyze(ctx context.Context, req Request) (Analysis, error) {
	fullMood := req.FullMood()

	prompt, err := BuildPrompt(req)
	if err != nil {
		return Fallback(fullMood), err
	}

	reply, err := i.llm.Complete(ctx, llm.Request{
		Purpose:     "analysis",
		System:      systemPrompt,
		User:        prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("analysis", metrics.OutcomeFallback).Inc()
		return Fallback(fullMood), fmt.Errorf("analyzing mood: %w", err)
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("analysis", metrics.OutcomeFallback).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("reply", truncate(reply, 200)).Msg("Unparseable mood analysis")
		return Fallback(fullMood), err
	}

	if replaced := sanitize(&analysis); len(replaced) > 0 {
		logging.Ctx(ctx).Warn().Strs("categories", replaced).Msg("Model selected tags outside the catalog")
	}

	metrics.LLMRequestsTotal.WithLabelValues("analysis", metrics.OutcomeSuccess).Inc()
	return analysis, nil
}

type catalogSection struct {
	Key   string
	Label string
	Tags  string
}

type promptData struct {
	Mood        string
	TimeContext string
	Interests   string
	Catalog     []catalogSection
}

// BuildPrompt renders the analysis instruction, embedding every catalog tag.
func BuildPrompt(req Request) (string, error) {
	interests := allContentTypes
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}

	data := promptData{
		Mood:        req.FullMood(),
		TimeContext: req.TimeContext,
		Interests:   interests,
	}
	for _, c := range catalog.Categories() {
		data.Catalog = append(data.Catalog, catalogSection{
			Key:   string(c),
			Label: c.CatalogLabel(),
			Tags:  strings.Join(catalog.TagsFor(c), ", "),
		})
	}

	var buf bytes.Buffer
	if err := analysisTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering analysis prompt: %w", err)
	}
	return buf.String(), nil
}

// rawAnalysis mirrors the JSON document requested from the model.
type rawAnalysis struct {
	Interpretation     string            `json:"mood_interpretation"`
	EnergyLevel        string            `json:"energy_level"`
	EmotionalTone      string            `json:"emotional_tone"`
	PsychologicalNeeds string            `json:"psychological_needs"`
	SelectedTags       map[string]string `json:"selected_tags"`
	TagReasoning       map[string]string `json:"tag_reasoning"`
	OverallStrategy    string            `json:"overall_strategy"`
}

// parseAnalysis decodes a model reply, tolerating a surrounding markdown code fence.
func parseAnalysis(reply string) (Analysis, error) {
	content := strings.TrimSpace(reply)
	if m := codeFence.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.SelectedTags == nil {
		return Analysis{}, fmt.Errorf("%w: missing selected_tags", ErrMalformedResponse)
	}

	a := Analysis{
		Interpretation:     raw.Interpretation,
		EnergyLevel:        EnergyLevel(strings.ToLower(strings.TrimSpace(raw.EnergyLevel))),
		EmotionalTone:      Tone(strings.ToLower(strings.TrimSpace(raw.EmotionalTone))),
		PsychologicalNeeds: raw.PsychologicalNeeds,
		SelectedTags:       make(map[catalog.Category]string, len(raw.SelectedTags)),
		TagReasoning:       make(map[catalog.Category]string, len(raw.TagReasoning)),
		OverallStrategy:    raw.OverallStrategy,
	}
	for k, v := range raw.SelectedTags {
		if c, ok := catalog.ParseCategory(k); ok {
			a.SelectedTags[c] = strings.TrimSpace(v)
		}
	}
	for k, v := range raw.TagReasoning {
		if c, ok := catalog.ParseCategory(k); ok {
			a.TagReasoning[c] = v
		}
	}
	return a, nil
}

// sanitize replaces out-of-catalog tags with the fallback tag for their
// category and normalises unknown enum values. It returns the categories
// whose tag was replaced.
func sanitize(a *Analysis) []string {
	if !a.EnergyLevel.Valid() {
		a.EnergyLevel = EnergyMedium
	}
	if !a.EmotionalTone.Valid() {
		a.EmotionalTone = ToneMixed
	}

	var replaced []string
	for _, c := range catalog.Categories() {
		tag, ok := a.SelectedTags[c]
		if !ok || catalog.Contains(c, tag) {
			continue
		}
		a.SelectedTags[c] = fallbackTags[c]
		a.TagReasoning[c] = fallbackReasoning[c]
		replaced = append(replaced, string(c))
	}
	return replaced
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Analyzer = (*Interpreter)(nil)
