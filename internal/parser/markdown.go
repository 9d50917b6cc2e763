package parser

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownDoc is a Markdown file prepared for chunking: frontmatter
// split off, title resolved, heading outline collected.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML). Empty map when absent or
	// malformed.
	Frontmatter map[string]any

	// Title from frontmatter or the first h1, empty otherwise.
	Title string

	// Body with the frontmatter block removed. This is what gets
	// chunked and classified.
	Body string

	// Headings in document order, h1 through h6. Useful as topic
	// candidates for coverage suggestions.
	Headings []string
}

var (
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// ParseMarkdown splits a Markdown document into frontmatter, body and
// heading outline. It never fails: malformed frontmatter is dropped and
// the raw content used as-is.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
		Body:        content,
	}

	if strings.HasPrefix(content, "---\n") {
		if endIdx := strings.Index(content[4:], "\n---"); endIdx > 0 {
			if err := yaml.Unmarshal([]byte(content[4:4+endIdx]), &doc.Frontmatter); err != nil {
				doc.Frontmatter = make(map[string]any)
			}
			doc.Body = strings.TrimPrefix(content[4+endIdx+4:], "\n")
		}
	}

	doc.Title = markdownTitle(doc.Frontmatter, doc.Body)
	doc.Headings = markdownHeadings(doc.Body)

	return doc
}

// markdownTitle prefers frontmatter title over the first h1.
func markdownTitle(fm map[string]any, body string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if name, ok := fm["name"].(string); ok && name != "" {
		return name
	}

	if match := h1Regex.FindStringSubmatch(body); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

func markdownHeadings(body string) []string {
	var headings []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if match := headingRegex.FindStringSubmatch(scanner.Text()); len(match) > 0 {
			headings = append(headings, strings.TrimSpace(match[2]))
		}
	}
	return headings
}
