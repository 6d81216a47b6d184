package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	mentionPattern      = regexp.MustCompile(`@<([\w-]+)>`)
	imagePattern        = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	linkPattern         = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	ruleLinePattern     = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*$`)
	blockMathPattern    = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineMathPattern   = regexp.MustCompile(`\$(.+?)\$`)
	latexTextPattern    = regexp.MustCompile(`\\text\{(.+?)\}`)
	inlineCodePattern   = regexp.MustCompile("`(.+?)`")
	emphasisPattern     = regexp.MustCompile(`\*+|#+`)
	quotePattern        = regexp.MustCompile(`-?>=?`)
	dashRunPattern      = regexp.MustCompile(`-{3,}`)
	whitespacePattern   = regexp.MustCompile(`[\s\p{Zs}]+`)
	attachmentURLMarker = "_apis/wit/attachments/"
)

// latexSymbols is applied in order.
var latexSymbols = []struct{ from, to string }{
	{`\leq`, "<="},
	{`\geq`, ">="},
	{`\times`, "*"},
	{`\cdot`, "*"},
	{`\pm`, "+/-"},
	{`\neq`, "!="},
	{`\approx`, "~"},
	{`\to`, "->"},
}

var braceRemover = strings.NewReplacer("{", "", "}", "")

// StripMarkup parses s as HTML and joins its text nodes with single spaces in
// reading order. Entities are decoded; script and style bodies are dropped.
// Mention directives are escaped first so the tag parser keeps them as text.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}

	shielded := mentionPattern.ReplaceAllString(s, "@&lt;${1}&gt;")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(shielded))
	if err != nil {
		return s
	}

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(parts, " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			*parts = append(*parts, child.Text())
		case "#comment", "script", "style":
		default:
			collectText(child, parts)
		}
	})
}

// ResolveMentions returns a stage that replaces @<id> directives with display
// names from dir, then removes all remaining @ sigils.
func ResolveMentions(dir *MentionDirectory) func(string) string {
	return func(s string) string {
		s = mentionPattern.ReplaceAllStringFunc(s, func(m string) string {
			return dir.Resolve(mentionPattern.FindStringSubmatch(m)[1])
		})
		return strings.ReplaceAll(s, "@", "")
	}
}

// ReplaceImages replaces ![alt](url) with [IMAGE].
func ReplaceImages(s string) string {
	return imagePattern.ReplaceAllString(s, "[IMAGE]")
}

// FlattenTables rewrites pipe tables as one "Row: h = v, ..." sentence per
// data row. A table is a block of at least two consecutive lines starting with
// "|": the first supplies headers and the second (separator) is skipped. Rows
// with a different cell count are dropped. Other lines are kept as is.
func FlattenTables(s string) string {
	if !strings.Contains(s, "|") {
		return s
	}

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var block []string

	flush := func() {
		if len(block) >= 2 {
			if sentences := tableSentences(block); sentences != "" {
				out = append(out, sentences)
			}
		} else {
			out = append(out, block...)
		}
		block = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			block = append(block, line)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()

	return strings.Join(out, "\n")
}

func tableSentences(block []string) string {
	headers := splitRow(block[0])

	var sentences []string
	for _, row := range block[2:] {
		values := splitRow(row)
		if len(values) != len(headers) {
			continue
		}
		pairs := make([]string, len(headers))
		for i, h := range headers {
			pairs[i] = h + " = " + values[i]
		}
		sentences = append(sentences, "Row: "+strings.Join(pairs, ", ")+".")
	}

	return strings.Join(sentences, " ")
}

func splitRow(line string) []string {
	cells := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// ReplaceLinks replaces every [text](http(s)://url) with [LINK: text].
func ReplaceLinks(s string) string {
	return linkPattern.ReplaceAllStringFunc(s, func(m string) string {
		return "[LINK: " + strings.TrimSpace(linkPattern.FindStringSubmatch(m)[1]) + "]"
	})
}

// ReplaceAttachmentLinks replaces links to tracker attachments with
// [FILE: name] and leaves other links alone. It only runs when enabled with
// WithAttachmentPlaceholders.
func ReplaceAttachmentLinks(s string) string {
	return linkPattern.ReplaceAllStringFunc(s, func(m string) string {
		if name, ok := attachmentName(linkPattern.FindStringSubmatch(m)[2]); ok {
			return "[FILE: " + name + "]"
		}
		return m
	})
}

func attachmentName(url string) (string, bool) {
	if !strings.Contains(url, attachmentURLMarker) {
		return "", false
	}
	idx := strings.LastIndex(url, "fileName=")
	if idx < 0 {
		return "", false
	}
	name, _, _ := strings.Cut(url[idx+len("fileName="):], "&")
	if name == "" {
		return "", false
	}
	return name, true
}

// ReplaceURLs replaces remaining bare http(s) URLs with [LINK].
func ReplaceURLs(s string) string {
	return urlPattern.ReplaceAllString(s, "[LINK]")
}

// RemoveHorizontalRules collapses lines made of three or more dashes.
func RemoveHorizontalRules(s string) string {
	return ruleLinePattern.ReplaceAllString(s, " ")
}

// StripLatex removes math delimiters, substitutes common symbols, and unwraps
// \text{...} and inline code, keeping the enclosed content.
func StripLatex(s string) string {
	s = blockMathPattern.ReplaceAllString(s, "${1}")
	s = inlineMathPattern.ReplaceAllString(s, "${1}")
	for _, sym := range latexSymbols {
		s = strings.ReplaceAll(s, sym.from, sym.to)
	}
	s = latexTextPattern.ReplaceAllString(s, "${1}")
	return inlineCodePattern.ReplaceAllString(s, "${1}")
}

// RemoveBraces drops every curly brace.
func RemoveBraces(s string) string {
	return braceRemover.Replace(s)
}

// StripMarkdownSigils removes emphasis and heading runs, every '>' except
// the "->" and ">=" written by StripLatex, and leftover dash runs.
func StripMarkdownSigils(s string) string {
	s = emphasisPattern.ReplaceAllString(s, "")
	s = quotePattern.ReplaceAllStringFunc(s, func(m string) string {
		if m == ">" {
			return ""
		}
		return m
	})
	return dashRunPattern.ReplaceAllString(s, " ")
}

// CollapseWhitespace folds whitespace runs into single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
