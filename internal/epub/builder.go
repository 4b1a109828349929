// Package epub provides ePub 3.0 generation from a parsed manuscript.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/parser"
)

// Book contains the metadata needed for epub generation.
type Book struct {
	ID        string
	Title     string
	Author    string
	Language  string // ISO 639-1 code (e.g., "zh", "en")
	Publisher string
	CreatedAt time.Time
}

// Unit is one spine entry: a volume heading page or a chapter.
type Unit struct {
	ID       string // e.g. "vol_001", "ch_003"
	Title    string // display title, number included
	Level    int    // 1=volume, 2=chapter
	Body     string // plain text; empty for volume heading pages
	Sections []book.Section
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book  Book
	units []Unit
}

// NewBuilder creates a builder over pre-flattened units.
func NewBuilder(meta Book, units []Unit) *Builder {
	return &Builder{book: meta, units: units}
}

// FromParseResult flattens a parsed hierarchy into spine units. Volume
// heading pages are emitted only when the document actually has more than
// one explicit volume.
func FromParseResult(meta Book, result *book.ParseResult) *Builder {
	if meta.Language == "" {
		meta.Language = isoLanguage(result.Language)
	}

	explicit := 0
	for i := range result.Volumes {
		if !result.Volumes[i].Implicit {
			explicit++
		}
	}

	var units []Unit
	volSeq, chSeq := 0, 0
	for vi := range result.Volumes {
		v := &result.Volumes[vi]
		if explicit > 1 && !v.Implicit {
			volSeq++
			units = append(units, Unit{
				ID:    fmt.Sprintf("vol_%03d", volSeq),
				Title: volumeDisplay(v, result.Language),
				Level: 1,
			})
		}
		for ci := range v.Chapters {
			ch := &v.Chapters[ci]
			chSeq++
			units = append(units, Unit{
				ID:       fmt.Sprintf("ch_%03d", chSeq),
				Title:    parser.HeadingDisplay(ch, result.Language),
				Level:    2,
				Body:     ch.Body,
				Sections: ch.Sections,
			})
		}
	}
	return NewBuilder(meta, units)
}

func volumeDisplay(v *book.Volume, lang book.Language) string {
	switch {
	case v.NumberToken == "":
		return v.Title
	case lang == book.LanguageEnglish:
		if v.Title == "" {
			return fmt.Sprintf("Part %s", v.NumberToken)
		}
		return fmt.Sprintf("Part %s: %s", v.NumberToken, v.Title)
	default:
		if v.Title == "" {
			return fmt.Sprintf("第%s卷", v.NumberToken)
		}
		return fmt.Sprintf("第%s卷 %s", v.NumberToken, v.Title)
	}
}

func isoLanguage(lang book.Language) string {
	if lang == book.LanguageEnglish {
		return "en"
	}
	return "zh"
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.WriteTo(f)
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	// 1. Write mimetype (must be first, uncompressed)
	if err := b.writeMimetype(zw); err != nil {
		return err
	}

	// 2. Write META-INF/container.xml
	if err := b.writeContainer(zw); err != nil {
		return err
	}

	// 3. Write OEBPS/content.opf (package document)
	if err := b.writePackage(zw); err != nil {
		return err
	}

	// 4. Write OEBPS/nav.xhtml (navigation)
	if err := b.writeNavigation(zw); err != nil {
		return err
	}

	// 5. Write OEBPS/toc.ncx (NCX for ePub 2 compatibility)
	if err := b.writeNCX(zw); err != nil {
		return err
	}

	// 6. Write OEBPS/styles/style.css
	if err := b.writeStylesheet(zw); err != nil {
		return err
	}

	// 7. Write unit files
	for _, u := range b.units {
		if err := b.writeUnit(zw, u); err != nil {
			return fmt.Errorf("failed to write unit %s: %w", u.ID, err)
		}
	}

	return nil
}

// writeMimetype writes the mimetype file (must be first and uncompressed).
func (b *Builder) writeMimetype(zw *zip.Writer) error {
	// Create with Store method (no compression) as required by ePub spec
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

// writeContainer writes META-INF/container.xml.
func (b *Builder) writeContainer(zw *zip.Writer) error {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

	w, err := zw.Create("META-INF/container.xml")
	if err != nil {
		return fmt.Errorf("failed to create container.xml: %w", err)
	}
	_, err = w.Write([]byte(content))
	return err
}

// writePackage writes OEBPS/content.opf.
func (b *Builder) writePackage(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/content.opf")
	if err != nil {
		return fmt.Errorf("failed to create content.opf: %w", err)
	}

	content := b.generatePackage()
	_, err = w.Write([]byte(content))
	return err
}

// writeNavigation writes OEBPS/nav.xhtml.
func (b *Builder) writeNavigation(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/nav.xhtml")
	if err != nil {
		return fmt.Errorf("failed to create nav.xhtml: %w", err)
	}

	content := b.generateNavigation()
	_, err = w.Write([]byte(content))
	return err
}

// writeNCX writes OEBPS/toc.ncx for ePub 2 compatibility.
func (b *Builder) writeNCX(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/toc.ncx")
	if err != nil {
		return fmt.Errorf("failed to create toc.ncx: %w", err)
	}

	content := b.generateNCX()
	_, err = w.Write([]byte(content))
	return err
}

// writeStylesheet writes OEBPS/styles/style.css.
func (b *Builder) writeStylesheet(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/styles/style.css")
	if err != nil {
		return fmt.Errorf("failed to create style.css: %w", err)
	}

	_, err = w.Write([]byte(defaultStylesheet))
	return err
}

// writeUnit writes a single unit XHTML file.
func (b *Builder) writeUnit(zw *zip.Writer, u Unit) error {
	filename := fmt.Sprintf("OEBPS/chapters/%s.xhtml", u.ID)
	w, err := zw.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}

	content := b.generateUnitXHTML(u)
	_, err = w.Write([]byte(content))
	return err
}

// generateUUID generates a unique identifier for the epub.
func (b *Builder) generateUUID() string {
	if b.book.ID != "" {
		return "urn:uuid:" + b.book.ID
	}
	return "urn:uuid:" + uuid.New().String()
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

const defaultStylesheet = `/* Chaptermill ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", "Songti SC", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2, h3 {
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

h2 {
  font-size: 1.4em;
}

p {
  margin: 0.5em 0;
  text-indent: 2em;
}

h1 + p, h2 + p {
  text-indent: 0;
}

.chapter-title {
  text-align: center;
  margin-top: 3em;
  margin-bottom: 2em;
  border-bottom: none;
}

.volume-title {
  text-align: center;
  margin-top: 6em;
  font-size: 2em;
  border-bottom: none;
}
`
