// Package pages models the wiki pages of a schema package and reads them
// from an extracted page package tree.
package pages

import (
	"encoding/json"
	"sort"
	"strings"
)

// SchemaPrefix marks titles in the category namespace. Only these pages
// define schemas and are handed to the code generator as schema titles.
const SchemaPrefix = "Category:"

// ContentModelJSON is the content model of slots holding JSON documents
const ContentModelJSON = "json"

// Slot is one content slot of a page (main, jsondata, jsonschema, ...)
type Slot struct {
	ContentModel string
	Content      []byte
}

// MarshalJSON embeds JSON slots verbatim and encodes all other content as a
// JSON string.
func (s Slot) MarshalJSON() ([]byte, error) {
	type wire struct {
		ContentModel string `json:"content_model"`
		Content      any    `json:"content"`
	}

	w := wire{ContentModel: s.ContentModel}
	if s.ContentModel == ContentModelJSON && json.Valid(s.Content) {
		w.Content = json.RawMessage(s.Content)
	} else {
		w.Content = string(s.Content)
	}
	return json.Marshal(w)
}

// Page is a fetched wiki page
type Page struct {
	Title     string          `json:"title"`
	Namespace string          `json:"namespace"`
	Name      string          `json:"name"`
	Slots     map[string]Slot `json:"slots"`
}

// Set maps page titles to pages
type Set map[string]*Page

// NewSet indexes pages by title. Later pages replace earlier ones with the
// same title.
func NewSet(pages []*Page) Set {
	set := make(Set, len(pages))
	for _, p := range pages {
		set[p.Title] = p
	}
	return set
}

// Titles returns all titles in sorted order
func (s Set) Titles() []string {
	titles := make([]string, 0, len(s))
	for title := range s {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// Missing returns the titles that are not part of the set, sorted and
// without duplicates.
func (s Set) Missing(titles []string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, title := range titles {
		if _, ok := s[title]; ok || seen[title] {
			continue
		}
		seen[title] = true
		missing = append(missing, title)
	}
	sort.Strings(missing)
	return missing
}

// SchemaTitles returns the sorted titles of all schema defining pages.
// An empty result is valid.
func SchemaTitles(set Set) []string {
	titles := []string{}
	for title := range set {
		if strings.HasPrefix(title, SchemaPrefix) {
			titles = append(titles, title)
		}
	}
	sort.Strings(titles)
	return titles
}
