package export

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gomutex/godocx"
)

// ContentType is the MIME type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DefaultFilename is used when the client names no file.
const DefaultFilename = "export.docx"

// bulletStyle is the list style shipped in the default document template.
const bulletStyle = "List Bullet"

// BuildDocx converts content line by line: "# " and "## " become headings,
// "- " becomes a bullet and anything else a plain paragraph. Blank lines
// are kept as empty paragraphs.
func BuildDocx(content string) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("new docx: %w", err)
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "## "):
			if _, err := doc.AddHeading(strings.TrimLeft(line[3:], " \t"), 2); err != nil {
				return nil, fmt.Errorf("add heading: %w", err)
			}
		case strings.HasPrefix(line, "# "):
			if _, err := doc.AddHeading(strings.TrimLeft(line[2:], " \t"), 1); err != nil {
				return nil, fmt.Errorf("add heading: %w", err)
			}
		case strings.HasPrefix(line, "- "):
			doc.AddParagraph(strings.TrimLeft(line[2:], " \t")).Style(bulletStyle)
		case line == "":
			doc.AddParagraph(" ")
		default:
			doc.AddParagraph(line)
		}
	}

	// godocx writes packages to a path.
	dir, err := os.MkdirTemp("", "accomplish-docx-*")
	if err != nil {
		return nil, fmt.Errorf("docx temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, DefaultFilename)
	if err := doc.SaveTo(file); err != nil {
		return nil, fmt.Errorf("save docx: %w", err)
	}
	return os.ReadFile(file)
}

// SanitizeFilename keeps a client-supplied name safe for a
// Content-Disposition header and forces a .docx extension.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == ';' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return DefaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".docx") {
		name += ".docx"
	}
	return name
}
