package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/pipeline"
	"github.com/justestif/go-moodflow/internal/qloo"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates creates a new template manager by loading templates from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}

	// Execute the "base" template which includes the page content
	return tmpl.ExecuteTemplate(w, "base", data)
}

// load parses all templates from the filesystem.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return fmt.Errorf("finding layouts: %w", err)
	}

	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return fmt.Errorf("finding partials: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	// Common files to include with every page
	commonFiles := append(layouts, partials...)

	for _, page := range pages {
		name := filepath.Base(page)
		name = name[:len(name)-len(".html")]

		files := append([]string{page}, commonFiles...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return nil
}

// toneHues maps emotional tone to a hue.
var toneHues = map[mood.Tone]float64{
	mood.TonePositive: 45,
	mood.ToneNegative: 220,
	mood.ToneNeutral:  190,
	mood.ToneMixed:    264,
	mood.ToneComplex:  300,
}

// energyLightness maps energy level to lightness.
var energyLightness = map[mood.EnergyLevel]float64{
	mood.EnergyLow:    38,
	mood.EnergyMedium: 48,
	mood.EnergyHigh:   58,
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// moodColor returns an HSL color string for an analysis.
		// Tone maps to hue, energy to lightness.
		"moodColor": func(energy mood.EnergyLevel, tone mood.Tone) template.CSS {
			hue, ok := toneHues[tone]
			if !ok {
				hue = toneHues[mood.ToneMixed]
			}
			lightness, ok := energyLightness[energy]
			if !ok {
				lightness = energyLightness[mood.EnergyMedium]
			}
			return template.CSS(fmt.Sprintf("hsl(%.0f, 70%%, %.0f%%)", hue, lightness))
		},

		"tagLabel":     catalog.TagLabel,
		"categoryName": func(c catalog.Category) string { return c.DisplayName() },
		"emoji":        func(c catalog.Category) string { return c.Emoji() },

		// formatTime formats a time as "Jan 2, 15:04"
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 15:04")
		},

		// add adds two integers (for 1-based indexing in loops)
		"add": func(a, b int) int {
			return a + b
		},
	}
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	Flash       *FlashMessage
	CurrentPath string
}

// FlashMessage represents a temporary notification message.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// FormData holds the values shown in the mood form.
type FormData struct {
	Mood              string
	AdditionalContext string
	TimeContext       string
	Interests         map[string]bool
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Form           FormData
	TimeContexts   []string
	InterestLabels []string
	Errors         []FieldError
	Result         *ResultData
}

// ResultData is the rendered view of a completed submission.
type ResultData struct {
	Mood        string
	Analysis    mood.Analysis
	Profile     []ProfileEntry
	Sections    []SectionData
	Summary     string
	Notices     []pipeline.Notice
	CompletedAt time.Time
}

// ProfileEntry is one selected tag with its reasoning.
type ProfileEntry struct {
	Category  catalog.Category
	Tag       string
	Reasoning string
}

// SectionData is the recommendation list of one category.
type SectionData struct {
	Category     catalog.Category
	Items        []qloo.Item
	EmptyMessage string
}

// newResultData builds the view of a completed submission in catalog order.
func newResultData(s *pipeline.Session) *ResultData {
	if s == nil {
		return nil
	}

	data := &ResultData{
		Mood:        s.MoodText,
		Analysis:    s.Analysis,
		Summary:     s.Summary,
		Notices:     s.Notices,
		CompletedAt: s.CompletedAt,
	}

	for _, c := range s.Analysis.SelectedCategories() {
		data.Profile = append(data.Profile, ProfileEntry{
			Category:  c,
			Tag:       s.Analysis.SelectedTags[c],
			Reasoning: s.Analysis.TagReasoning[c],
		})
	}

	for _, c := range s.FetchedCategories() {
		section := SectionData{Category: c, Items: s.Recommendations[c]}
		if len(section.Items) == 0 {
			section.EmptyMessage = fmt.Sprintf(
				"No %s recommendations found for the AI-selected tags. The AI chose very specific criteria - try describing your mood with different nuances.",
				c.EntityType())
		}
		data.Sections = append(data.Sections, section)
	}

	return data
}

// newFormData returns the form populated from a submission.
func newFormData(sub pipeline.Submission) FormData {
	form := FormData{
		Mood:              sub.Mood,
		AdditionalContext: sub.AdditionalContext,
		TimeContext:       sub.TimeContext,
		Interests:         make(map[string]bool, len(sub.Interests)),
	}
	for _, label := range sub.Interests {
		form.Interests[label] = true
	}
	return form
}

// defaultFormData is the form shown to a new visitor.
func defaultFormData() FormData {
	return newFormData(pipeline.Submission{
		TimeContext: catalog.TimeContexts()[0],
		Interests:   catalog.DefaultInterests,
	})
}
