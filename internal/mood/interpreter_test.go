package mood

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/llm"
)

// fakeCompleter implements llm.Completer for testing.
type fakeCompleter struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

const liveReply = `{
	"mood_interpretation": "You sound exhausted and in need of gentleness.",
	"energy_level": "low",
	"emotional_tone": "negative",
	"psychological_needs": "comfort and rest",
	"selected_tags": {
		"movie": "urn:tag:genre:media:family",
		"music": "urn:tag:genre:music:ambient",
		"book": "urn:tag:genre:media:poetry",
		"podcast": "urn:tag:genre:media:mindfulness",
		"destination": "urn:tag:region:global:quiet"
	},
	"tag_reasoning": {
		"movie": "Warm stories",
		"music": "Soft textures",
		"book": "Short, slow reading",
		"podcast": "Grounding",
		"destination": "Stillness"
	},
	"overall_strategy": "Lower the volume of the world."
}`

func assertTagsInCatalog(t *testing.T, a Analysis) {
	t.Helper()
	for c, tag := range a.SelectedTags {
		assert.True(t, catalog.Contains(c, tag), "tag %q not in %s catalog", tag, c)
	}
}

func TestAnalyze_LiveReply(t *testing.T) {
	fake := &fakeCompleter{reply: liveReply}
	interp := NewInterpreter(fake)

	got, err := interp.Analyze(context.Background(), Request{
		Mood:        "I'm emotionally drained and need comfort",
		TimeContext: "Evening",
		Interests:   []string{"Movies", "Books"},
	})
	require.NoError(t, err)

	assert.Equal(t, EnergyLow, got.EnergyLevel)
	assert.Equal(t, ToneNegative, got.EmotionalTone)
	assert.Equal(t, "comfort and rest", got.PsychologicalNeeds)
	assert.Equal(t, "urn:tag:genre:media:family", got.SelectedTags[catalog.Movie])
	assert.Equal(t, "Soft textures", got.TagReasoning[catalog.Music])
	assert.Len(t, got.SelectedTags, 5)
	assertTagsInCatalog(t, got)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "analysis", req.Purpose)
	assert.Equal(t, maxTokens, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 0.001)
	assert.Equal(t, systemPrompt, req.System)
	assert.Contains(t, req.User, `MOOD TO ANALYZE: "I'm emotionally drained and need comfort"`)
	assert.Contains(t, req.User, "TIME CONTEXT: Evening")
	assert.Contains(t, req.User, "USER INTERESTS: Movies, Books")
}

func TestAnalyze_FencedReply(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n" + liveReply + "\n```"}

	got, err := NewInterpreter(fake).Analyze(context.Background(), Request{Mood: "tired"})
	require.NoError(t, err)
	assert.Equal(t, "urn:tag:region:global:quiet", got.SelectedTags[catalog.Destination])
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		wantErr error
	}{
		{name: "network failure", err: errors.New("dial tcp: connection refused")},
		{name: "empty reply", err: llm.ErrEmptyResponse, wantErr: llm.ErrEmptyResponse},
		{name: "not json", reply: "I think you should watch a drama.", wantErr: ErrMalformedResponse},
		{name: "truncated json", reply: `{"mood_interpretation": "cut`, wantErr: ErrMalformedResponse},
		{name: "missing tags", reply: `{"mood_interpretation": "ok"}`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{reply: tt.reply, err: tt.err}

			got, err := NewInterpreter(fake).Analyze(context.Background(), Request{Mood: "anxious"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, Fallback("anxious"), got)
			assertTagsInCatalog(t, got)
		})
	}
}

func TestAnalyze_ReplacesTagsOutsideCatalog(t *testing.T) {
	reply := `{
		"mood_interpretation": "restless",
		"energy_level": "HIGH",
		"emotional_tone": "bittersweet",
		"psychological_needs": "movement",
		"selected_tags": {
			"movie": "urn:tag:genre:media:action",
			"music": "urn:tag:genre:media:drama",
			"games": "urn:tag:genre:games:rpg"
		},
		"tag_reasoning": {"movie": "Momentum", "music": "Wrong list"},
		"overall_strategy": "Channel the energy."
	}`
	fake := &fakeCompleter{reply: reply}

	got, err := NewInterpreter(fake).Analyze(context.Background(), Request{Mood: "restless"})
	require.NoError(t, err)

	assert.Equal(t, EnergyHigh, got.EnergyLevel)
	assert.Equal(t, ToneMixed, got.EmotionalTone)
	assert.Equal(t, "urn:tag:genre:media:action", got.SelectedTags[catalog.Movie])
	assert.Equal(t, "urn:tag:genre:music:indie", got.SelectedTags[catalog.Music])
	assert.Equal(t, fallbackReasoning[catalog.Music], got.TagReasoning[catalog.Music])
	assert.Len(t, got.SelectedTags, 2, "unknown categories dropped, omitted ones stay omitted")
	assert.Equal(t, []catalog.Category{catalog.Movie, catalog.Music}, got.SelectedCategories())
	assertTagsInCatalog(t, got)
}

func TestAnalyze_AdditionalContext(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("down")}

	got, _ := NewInterpreter(fake).Analyze(context.Background(), Request{
		Mood:              "stuck",
		AdditionalContext: "big decision tomorrow",
	})

	assert.Equal(t, "Understanding your current state: stuck Additional context: big decision tomorrow", got.Interpretation)
	require.Len(t, fake.requests, 1)
	assert.Contains(t, fake.requests[0].User, `"stuck Additional context: big decision tomorrow"`)
}

func TestBuildPrompt_EmbedsCatalog(t *testing.T) {
	prompt, err := BuildPrompt(Request{Mood: "fine"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "USER INTERESTS: "+allContentTypes)
	for c, list := range catalog.Tags() {
		assert.Contains(t, prompt, c.CatalogLabel()+": ")
		assert.Contains(t, prompt, `"`+string(c)+`": "exact tag`)
		for _, tag := range list {
			assert.Contains(t, prompt, tag)
		}
	}
	assert.True(t, strings.Contains(prompt, "Use EXACT tag strings"))
}

func TestFallback(t *testing.T) {
	a := Fallback("blue")

	assert.Equal(t, EnergyMedium, a.EnergyLevel)
	assert.Equal(t, ToneMixed, a.EmotionalTone)
	assert.Equal(t, "Understanding your current state: blue", a.Interpretation)
	assert.Len(t, a.SelectedTags, len(catalog.Categories()))
	assert.Len(t, a.TagReasoning, len(catalog.Categories()))
	assert.Equal(t, catalog.Categories(), a.SelectedCategories())
	assertTagsInCatalog(t, a)

	a.SelectedTags[catalog.Movie] = "mutated"
	assert.Equal(t, "urn:tag:genre:media:drama", Fallback("blue").SelectedTags[catalog.Movie])
}
