// Package ingest turns raw manuscript files into decoded text. Plain-text
// novels circulate in UTF-8, UTF-16, GB18030, and Big5; the structural
// parser only ever sees a decoded string, so all charset handling ends here.
package ingest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Document is a decoded manuscript.
type Document struct {
	Text     string
	Encoding string // "utf-8", "utf-16le", "utf-16be", "gb18030", "big5"
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ReadFile loads and decodes a manuscript from disk.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manuscript: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes manuscript bytes. BOMs decide outright; otherwise
// valid UTF-8 passes through, and remaining input is tried as GB18030 and
// Big5 with the more plausible decode winning. Line endings are normalized
// to LF so line-anchored patterns never see a trailing CR.
func DecodeBytes(data []byte) (*Document, error) {
	doc, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	doc.Text = normalizeNewlines(doc.Text)
	return doc, nil
}

func decodeBytes(data []byte) (*Document, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return &Document{Text: string(data[len(bomUTF8):]), Encoding: "utf-8"}, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		text, err := decodeWith(xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM), data)
		if err != nil {
			return nil, fmt.Errorf("utf-16le decode failed: %w", err)
		}
		return &Document{Text: text, Encoding: "utf-16le"}, nil
	case bytes.HasPrefix(data, bomUTF16BE):
		text, err := decodeWith(xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM), data)
		if err != nil {
			return nil, fmt.Errorf("utf-16be decode failed: %w", err)
		}
		return &Document{Text: text, Encoding: "utf-16be"}, nil
	}

	if utf8.Valid(data) {
		return &Document{Text: string(data), Encoding: "utf-8"}, nil
	}

	best := ""
	bestName := ""
	bestScore := -1.0
	for _, c := range []struct {
		name string
		enc  encoding.Encoding
	}{
		{"gb18030", simplifiedchinese.GB18030},
		{"big5", traditionalchinese.Big5},
	} {
		text, err := decodeWith(c.enc, data)
		if err != nil {
			continue
		}
		// Mis-decoded legacy bytes land in private-use or rare code points;
		// the right charset yields common hanzi and ASCII.
		if s := plausibility(text); s > bestScore {
			best, bestName, bestScore = text, c.name, s
		}
	}
	if bestName == "" {
		return nil, fmt.Errorf("manuscript is not valid UTF-8, GB18030, or Big5")
	}
	return &Document{Text: best, Encoding: bestName}, nil
}

// normalizeNewlines folds CRLF and stray CR into LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// plausibility scores decoded text by the fraction of runes that belong in
// a manuscript: ASCII, common CJK, and everyday punctuation.
func plausibility(text string) float64 {
	total, good := 0, 0
	for _, r := range text {
		total++
		switch {
		case r < 0x80,
			r >= 0x4E00 && r <= 0x9FA5,
			unicode.IsSpace(r),
			unicode.IsPunct(r):
			good++
		case r == utf8.RuneError || (r >= 0xE000 && r <= 0xF8FF):
			// replacement or private-use: strong mis-decode signal
			good--
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
