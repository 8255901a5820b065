package catalog

import "slices"

// interestLabels are the content types a user can declare interest in,
// in the order they are offered.
var interestLabels = []string{"Movies", "Music", "Books", "Podcasts", "Travel Ideas"}

var interestCategory = map[string]Category{
	"Movies":       Movie,
	"Music":        Music,
	"Books":        Book,
	"Podcasts":     Podcast,
	"Travel Ideas": Destination,
}

// DefaultInterests are preselected on a fresh form.
var DefaultInterests = []string{"Movies", "Books"}

var timeContexts = []string{"Morning", "Afternoon", "Evening", "Late Night"}

// InterestLabels returns the selectable interest labels.
func InterestLabels() []string {
	return slices.Clone(interestLabels)
}

// CategoryForInterest maps a declared interest label to its category.
// Matching is exact; unknown labels report false.
func CategoryForInterest(label string) (Category, bool) {
	c, ok := interestCategory[label]
	return c, ok
}

// InterestCategories resolves a list of interest labels into a category set.
// Unknown labels are ignored.
func InterestCategories(labels []string) map[Category]bool {
	out := make(map[Category]bool, len(labels))
	for _, l := range labels {
		if c, ok := CategoryForInterest(l); ok {
			out[c] = true
		}
	}
	return out
}

// TimeContexts returns the selectable time-of-day labels.
func TimeContexts() []string {
	return slices.Clone(timeContexts)
}
