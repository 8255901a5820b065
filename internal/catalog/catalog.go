// Package catalog holds the static tag catalog used to steer mood-based
// recommendations, along with the category and interest lookup tables.
package catalog

import (
	"slices"
	"strings"
	"unicode"
)

// Category is a content type that recommendations can be fetched for.
type Category string

const (
	Movie       Category = "movie"
	Music       Category = "music"
	Book        Category = "book"
	Podcast     Category = "podcast"
	Destination Category = "destination"
)

// categories lists every category in display and fetch order.
var categories = []Category{Movie, Music, Book, Podcast, Destination}

// categoryInfo describes how a category is presented and queried.
type categoryInfo struct {
	catalogLabel string // heading used when listing tags in prompts
	entityType   string // entity type understood by the recommendation API
	displayName  string
	emoji        string
}

var info = map[Category]categoryInfo{
	Movie:       {catalogLabel: "Movie Genres", entityType: "movie", displayName: "Movies & Shows", emoji: "🎬"},
	Music:       {catalogLabel: "Music Genres", entityType: "artist", displayName: "Music Artists", emoji: "🎵"},
	Book:        {catalogLabel: "Book Categories", entityType: "book", displayName: "Books", emoji: "📚"},
	Podcast:     {catalogLabel: "Podcast Types", entityType: "podcast", displayName: "Podcasts", emoji: "🎧"},
	Destination: {catalogLabel: "Destination Vibes", entityType: "destination", displayName: "Travel Destinations", emoji: "✈️"},
}

var tags = map[Category][]string{
	Movie: {
		"urn:tag:genre:media:action", "urn:tag:genre:media:adventure", "urn:tag:genre:media:animation",
		"urn:tag:genre:media:biography", "urn:tag:genre:media:comedy", "urn:tag:genre:media:crime",
		"urn:tag:genre:media:documentary", "urn:tag:genre:media:drama", "urn:tag:genre:media:family",
		"urn:tag:genre:media:fantasy", "urn:tag:genre:media:film-noir", "urn:tag:genre:media:history",
		"urn:tag:genre:media:horror", "urn:tag:genre:media:music", "urn:tag:genre:media:musical",
		"urn:tag:genre:media:mystery", "urn:tag:genre:media:romance", "urn:tag:genre:media:sci-fi",
		"urn:tag:genre:media:sport", "urn:tag:genre:media:thriller", "urn:tag:genre:media:war",
		"urn:tag:genre:media:western", "urn:tag:genre:media:indie", "urn:tag:genre:media:cult",
	},
	Music: {
		"urn:tag:genre:music:pop", "urn:tag:genre:music:rock", "urn:tag:genre:music:hip-hop",
		"urn:tag:genre:music:jazz", "urn:tag:genre:music:classical", "urn:tag:genre:music:electronic",
		"urn:tag:genre:music:country", "urn:tag:genre:music:r&b", "urn:tag:genre:music:folk",
		"urn:tag:genre:music:reggae", "urn:tag:genre:music:blues", "urn:tag:genre:music:indie",
		"urn:tag:genre:music:ambient", "urn:tag:genre:music:punk", "urn:tag:genre:music:metal",
		"urn:tag:genre:music:alternative", "urn:tag:genre:music:funk", "urn:tag:genre:music:soul",
		"urn:tag:genre:music:world", "urn:tag:genre:music:acoustic", "urn:tag:genre:music:experimental",
	},
	Book: {
		"urn:tag:genre:media:fiction", "urn:tag:genre:media:non-fiction", "urn:tag:genre:media:biography",
		"urn:tag:genre:media:memoir", "urn:tag:genre:media:history", "urn:tag:genre:media:philosophy",
		"urn:tag:genre:media:science", "urn:tag:genre:media:self-help", "urn:tag:genre:media:psychology",
		"urn:tag:genre:media:poetry", "urn:tag:genre:media:mystery", "urn:tag:genre:media:romance",
		"urn:tag:genre:media:fantasy", "urn:tag:genre:media:sci-fi", "urn:tag:genre:media:thriller",
		"urn:tag:genre:media:adventure", "urn:tag:genre:media:business", "urn:tag:genre:media:health",
		"urn:tag:genre:media:spirituality", "urn:tag:genre:media:travel", "urn:tag:genre:media:cooking",
	},
	Podcast: {
		"urn:tag:genre:media:comedy", "urn:tag:genre:media:education", "urn:tag:genre:media:news",
		"urn:tag:genre:media:storytelling", "urn:tag:genre:media:true-crime", "urn:tag:genre:media:business",
		"urn:tag:genre:media:health", "urn:tag:genre:media:technology", "urn:tag:genre:media:science",
		"urn:tag:genre:media:history", "urn:tag:genre:media:philosophy", "urn:tag:genre:media:motivation",
		"urn:tag:genre:media:mindfulness", "urn:tag:genre:media:interview", "urn:tag:genre:media:culture",
		"urn:tag:genre:media:politics", "urn:tag:genre:media:sports", "urn:tag:genre:media:arts",
	},
	Destination: {
		"urn:tag:region:global:adventure", "urn:tag:region:global:relaxing", "urn:tag:region:global:cultural",
		"urn:tag:region:global:scenic", "urn:tag:region:global:urban", "urn:tag:region:global:quiet",
		"urn:tag:region:global:vibrant", "urn:tag:region:global:historic", "urn:tag:region:global:nature",
		"urn:tag:region:global:beach", "urn:tag:region:global:mountain", "urn:tag:region:global:tropical",
		"urn:tag:region:global:romantic", "urn:tag:region:global:family", "urn:tag:region:global:luxury",
		"urn:tag:region:global:budget", "urn:tag:region:global:exotic", "urn:tag:region:global:spiritual",
	},
}

// Categories returns all categories in catalog order.
func Categories() []Category {
	return slices.Clone(categories)
}

// Tags returns the full catalog. The result is a fresh copy on every call.
func Tags() map[Category][]string {
	out := make(map[Category][]string, len(tags))
	for c, list := range tags {
		out[c] = slices.Clone(list)
	}
	return out
}

// TagsFor returns the tags of a single category, or nil for an unknown one.
func TagsFor(c Category) []string {
	return slices.Clone(tags[c])
}

// Contains reports whether tag is listed under category c.
func Contains(c Category, tag string) bool {
	return slices.Contains(tags[c], tag)
}

// ParseCategory converts a raw string into a known Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := info[c]
	return c, ok
}

// Valid reports whether c is part of the catalog.
func (c Category) Valid() bool {
	_, ok := info[c]
	return ok
}

// EntityType returns the recommendation API entity type for c ("artist" for music).
func (c Category) EntityType() string {
	return info[c].entityType
}

// DisplayName returns the human-facing section title for c.
func (c Category) DisplayName() string {
	if n := info[c].displayName; n != "" {
		return n
	}
	return titleCase(string(c))
}

// Emoji returns the icon shown next to the category.
func (c Category) Emoji() string {
	if e := info[c].emoji; e != "" {
		return e
	}
	return "🎯"
}

// CatalogLabel returns the heading used when the tag list is shown to the model.
func (c Category) CatalogLabel() string {
	return info[c].catalogLabel
}

// Title returns the category name with the first letter upper-cased.
func (c Category) Title() string {
	return titleCase(string(c))
}

// TagLabel turns a tag identifier into a short readable label,
// e.g. "urn:tag:genre:media:true-crime" becomes "True Crime".
func TagLabel(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		tag = tag[i+1:]
	}
	return titleCase(strings.ReplaceAll(tag, "-", " "))
}

// titleCase upper-cases every letter that follows a non-letter, so "r&b"
// becomes "R&B" and "sci fi" becomes "Sci Fi".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
