package epub

import (
	"fmt"
	"strings"
)

// generateNavigation creates the nav.xhtml navigation document. Volumes
// (level 1) nest the chapters that follow them.
func (b *Builder) generateNavigation() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)

	var i int
	for i < len(b.units) {
		u := b.units[i]

		if u.Level == 1 {
			sb.WriteString(fmt.Sprintf("      <li>\n        <a href=\"chapters/%s.xhtml\">%s</a>\n",
				u.ID, escapeXML(u.Title)))

			var nested []Unit
			j := i + 1
			for j < len(b.units) && b.units[j].Level > 1 {
				nested = append(nested, b.units[j])
				j++
			}

			if len(nested) > 0 {
				sb.WriteString("        <ol>\n")
				for _, nu := range nested {
					sb.WriteString("          ")
					sb.WriteString(b.navEntry(nu))
				}
				sb.WriteString("        </ol>\n")
			}

			sb.WriteString("      </li>\n")
			i = j
		} else {
			sb.WriteString(b.navEntry(u))
			i++
		}
	}

	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)

	return sb.String()
}

// navEntry creates a single navigation entry.
func (b *Builder) navEntry(u Unit) string {
	return fmt.Sprintf("      <li><a href=\"chapters/%s.xhtml\">%s</a></li>\n",
		u.ID, escapeXML(u.Title))
}

// generateNCX creates the toc.ncx for ePub 2 compatibility.
func (b *Builder) generateNCX() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(b.generateUUID())
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="2"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(b.book.Title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)

	for i, u := range b.units {
		sb.WriteString(fmt.Sprintf("    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1))
		sb.WriteString(fmt.Sprintf("      <navLabel><text>%s</text></navLabel>\n", escapeXML(u.Title)))
		sb.WriteString(fmt.Sprintf("      <content src=\"chapters/%s.xhtml\"/>\n", u.ID))
		sb.WriteString("    </navPoint>\n")
	}

	sb.WriteString(`  </navMap>
</ncx>
`)

	return sb.String()
}
