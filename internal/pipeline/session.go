package pipeline

import (
	"time"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/qloo"
)

// Stage names the pipeline step a Notice came from.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageFetch     Stage = "fetch"
	StageSummarize Stage = "summarize"
)

// Notice is a user-visible, non-fatal degradation of a submission.
type Notice struct {
	Stage    Stage            `json:"stage"`
	Category catalog.Category `json:"category,omitempty"`
	Message  string           `json:"message"`
}

// Session is the snapshot of one completed submission. It is replaced
// wholesale on the next completed submission and never partially updated.
type Session struct {
	MoodText          string                           `json:"mood_text"`
	AdditionalContext string                           `json:"additional_context,omitempty"`
	TimeContext       string                           `json:"time_context,omitempty"`
	Interests         []string                         `json:"interests,omitempty"`
	Analysis          mood.Analysis                    `json:"analysis"`
	Recommendations   map[catalog.Category][]qloo.Item `json:"recommendations"`
	Summary           string                           `json:"summary"`
	Notices           []Notice                         `json:"notices,omitempty"`
	CompletedAt       time.Time                        `json:"completed_at"`
}

// FetchedCategories returns the categories that were fetched, in catalog
// order, including those that came back empty.
func (s *Session) FetchedCategories() []catalog.Category {
	var out []catalog.Category
	for _, c := range catalog.Categories() {
		if _, ok := s.Recommendations[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Degraded reports whether any step fell back to its default.
func (s *Session) Degraded() bool {
	return len(s.Notices) > 0
}

// NoticesFor returns the notices raised by a stage.
func (s *Session) NoticesFor(stage Stage) []Notice {
	var out []Notice
	for _, n := range s.Notices {
		if n.Stage == stage {
			out = append(out, n)
		}
	}
	return out
}
