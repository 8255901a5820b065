// Package mood interprets a free-text mood description with a language model
// and selects one catalog tag per content category.
package mood

import (
	"github.com/justestif/go-moodflow/internal/catalog"
)

// EnergyLevel is the perceived energy of the user.
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// Valid reports whether e is one of the known levels.
func (e EnergyLevel) Valid() bool {
	switch e {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return true
	}
	return false
}

// Tone is the overall emotional tone of the mood description.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
	ToneMixed    Tone = "mixed"
	ToneComplex  Tone = "complex"
)

// Valid reports whether t is one of the known tones.
func (t Tone) Valid() bool {
	switch t {
	case TonePositive, ToneNegative, ToneNeutral, ToneMixed, ToneComplex:
		return true
	}
	return false
}

// Analysis is the structured interpretation of one mood submission.
type Analysis struct {
	Interpretation     string                      `json:"mood_interpretation"`
	EnergyLevel        EnergyLevel                 `json:"energy_level"`
	EmotionalTone      Tone                        `json:"emotional_tone"`
	PsychologicalNeeds string                      `json:"psychological_needs"`
	SelectedTags       map[catalog.Category]string `json:"selected_tags"`
	TagReasoning       map[catalog.Category]string `json:"tag_reasoning"`
	OverallStrategy    string                      `json:"overall_strategy"`
}

// fallbackTags is the pre-chosen tag per category used when analysis fails.
var fallbackTags = map[catalog.Category]string{
	catalog.Movie:       "urn:tag:genre:media:drama",
	catalog.Music:       "urn:tag:genre:music:indie",
	catalog.Book:        "urn:tag:genre:media:fiction",
	catalog.Podcast:     "urn:tag:genre:media:storytelling",
	catalog.Destination: "urn:tag:region:global:scenic",
}

var fallbackReasoning = map[catalog.Category]string{
	catalog.Movie:       "Drama provides emotional depth and relatability",
	catalog.Music:       "Indie music offers artistic authenticity and emotional nuance",
	catalog.Book:        "Fiction allows for emotional exploration and escapism",
	catalog.Podcast:     "Storytelling provides narrative engagement",
	catalog.Destination: "Scenic locations offer peaceful reflection opportunities",
}

// Fallback returns the fixed analysis used whenever the model cannot be
// consulted or its answer cannot be parsed.
func Fallback(moodText string) Analysis {
	tags := make(map[catalog.Category]string, len(fallbackTags))
	reasoning := make(map[catalog.Category]string, len(fallbackReasoning))
	for c, t := range fallbackTags {
		tags[c] = t
		reasoning[c] = fallbackReasoning[c]
	}

	return Analysis{
		Interpretation:     "Understanding your current state: " + moodText,
		EnergyLevel:        EnergyMedium,
		EmotionalTone:      ToneMixed,
		PsychologicalNeeds: "balance and comfort",
		SelectedTags:       tags,
		TagReasoning:       reasoning,
		OverallStrategy:    "Providing balanced content for emotional equilibrium and gentle engagement.",
	}
}

// SelectedCategories returns the categories that carry a selected tag, in catalog order.
func (a Analysis) SelectedCategories() []catalog.Category {
	var out []catalog.Category
	for _, c := range catalog.Categories() {
		if _, ok := a.SelectedTags[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
