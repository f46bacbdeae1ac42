package reports

import (
	"fmt"
	"regexp"
	"strings"
)

// Shape bounds for generated reports.
const (
	MinReviewParagraphs = 3
	MaxReviewParagraphs = 5
	MinReviewBullets    = 6
	MaxReviewBullets    = 10
	MinResumeBullets    = 8
	MaxResumeBullets    = 12
)

var (
	summaryHeading         = regexp.MustCompile(`(?mi)^##\s*Summary\s*$`)
	accomplishmentsHeading = regexp.MustCompile(`(?mi)^##\s*Key Accomplishments\s*$`)
	blankLines             = regexp.MustCompile(`\n\s*\n`)
)

// ShapeError reports generated text that does not match the expected layout.
type ShapeError struct {
	Type       string
	Paragraphs int
	Bullets    int
	Reason     string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("generated %s has an invalid shape: %s", e.Type, e.Reason)
}

// ValidateReview checks a review has 3-5 summary paragraphs and 6-10
// bullets. The summary sits between the Summary and Key Accomplishments
// headings; without both headings in order, it is everything before the
// first bullet.
func ValidateReview(text string) error {
	text = normalizeNewlines(text)
	paragraphs := countParagraphs(reviewSummarySection(text))
	bullets := countBullets(text)

	shapeErr := &ShapeError{Type: "review", Paragraphs: paragraphs, Bullets: bullets}
	switch {
	case paragraphs < MinReviewParagraphs || paragraphs > MaxReviewParagraphs:
		shapeErr.Reason = fmt.Sprintf("expected %d-%d summary paragraphs, got %d", MinReviewParagraphs, MaxReviewParagraphs, paragraphs)
		return shapeErr
	case bullets < MinReviewBullets || bullets > MaxReviewBullets:
		shapeErr.Reason = fmt.Sprintf("expected %d-%d bullets, got %d", MinReviewBullets, MaxReviewBullets, bullets)
		return shapeErr
	}
	return nil
}

// ValidateResume checks a resume has 8-12 bullets.
func ValidateResume(text string) error {
	bullets := countBullets(normalizeNewlines(text))
	if bullets < MinResumeBullets || bullets > MaxResumeBullets {
		return &ShapeError{
			Type:    "resume",
			Bullets: bullets,
			Reason:  fmt.Sprintf("expected %d-%d bullets, got %d", MinResumeBullets, MaxResumeBullets, bullets),
		}
	}
	return nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func reviewSummarySection(text string) string {
	start := summaryHeading.FindStringIndex(text)
	end := accomplishmentsHeading.FindStringIndex(text)
	if start != nil && end != nil && start[1] <= end[0] {
		return text[start[1]:end[0]]
	}

	var before []string
	for _, line := range strings.Split(text, "\n") {
		if isBullet(line) {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		before = append(before, line)
	}
	return strings.Join(before, "\n")
}

func countParagraphs(section string) int {
	n := 0
	for _, block := range blankLines.Split(section, -1) {
		if strings.TrimSpace(block) != "" {
			n++
		}
	}
	return n
}

func isBullet(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "- ")
}

func countBullets(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if isBullet(line) {
			n++
		}
	}
	return n
}
