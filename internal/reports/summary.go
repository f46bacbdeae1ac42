// Package reports turns ranges of journal entries into persisted
// performance reviews and resume bullet lists.
package reports

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jimdaga/accomplish/internal/models"
)

// rawTextLimit caps the characters of an unenriched entry sent to the model.
const rawTextLimit = 200

// Summary is the per-entry input to a report. It is also stored verbatim as
// the output's input snapshot.
type Summary struct {
	Date     string   `json:"date"`
	Title    string   `json:"title,omitempty"`
	Bullets  []string `json:"bullets,omitempty"`
	Category string   `json:"category,omitempty"`
	Text     string   `json:"text,omitempty"`
}

func (s Summary) enriched() bool {
	return s.Title != "" && len(s.Bullets) > 0
}

// Summarize prefers each entry's current enrichment and falls back to the
// start of its raw text.
func Summarize(entries []models.EntryWithEnrichment) []Summary {
	out := make([]Summary, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Enrichment != nil && e.Enrichment.Title() != "" && len(e.Enrichment.Bullets()) > 0 {
			out = append(out, Summary{
				Date:     e.Date(),
				Title:    e.Enrichment.Title(),
				Bullets:  e.Enrichment.Bullets(),
				Category: e.Enrichment.Category(),
			})
			continue
		}
		out = append(out, Summary{Date: e.Date(), Text: truncate(e.RawText, rawTextLimit)})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// BuildGroupedSummary renders summaries grouped by month, months ascending.
// Entries keep their input order within a month.
//
//	Month: 2024-03
//	- 2024-03-15: Title :: first | second
//	- 2024-03-14: raw text
func BuildGroupedSummary(summaries []Summary) string {
	grouped := make(map[string][]Summary)
	for _, s := range summaries {
		month := "unknown"
		if len(s.Date) >= 7 {
			month = s.Date[:7]
		}
		grouped[month] = append(grouped[month], s)
	}

	months := make([]string, 0, len(grouped))
	for m := range grouped {
		months = append(months, m)
	}
	sort.Strings(months)

	var lines []string
	for _, m := range months {
		lines = append(lines, "Month: "+m)
		for _, s := range grouped[m] {
			switch {
			case s.enriched():
				lines = append(lines, "- "+s.Date+": "+s.Title+" :: "+strings.Join(s.Bullets, " | "))
			case s.Text != "":
				lines = append(lines, "- "+s.Date+": "+s.Text)
			}
		}
	}
	return strings.Join(lines, "\n")
}
