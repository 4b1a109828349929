package epub

import (
	"strings"
)

// generateUnitXHTML renders one spine unit. Bodies are plain text straight
// from the parser: every non-empty line is a paragraph.
func (b *Builder) generateUnitXHTML(u Unit) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(u.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)

	if u.Level == 1 {
		sb.WriteString(`<h1 class="volume-title">`)
		sb.WriteString(escapeXML(u.Title))
		sb.WriteString("</h1>\n")
	} else {
		sb.WriteString(`<h1 class="chapter-title">`)
		sb.WriteString(escapeXML(u.Title))
		sb.WriteString("</h1>\n")
		writeParagraphs(&sb, u.Body)
		for _, s := range u.Sections {
			sb.WriteString("<h2>")
			sb.WriteString(escapeXML(s.Title))
			sb.WriteString("</h2>\n")
			writeParagraphs(&sb, s.Body)
		}
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func writeParagraphs(sb *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(escapeXML(trimmed))
		sb.WriteString("</p>\n")
	}
}
