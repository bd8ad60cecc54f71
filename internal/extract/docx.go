package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// A .docx is a zip whose body lives at word/document.xml unless
// [Content_Types].xml overrides the part name.
const docxBodyPart = "word/document.xml"

const docxBodyType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// runText matches <w:t> nodes with any attributes (xml:space etc.).
var runText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// bodyOverride captures the PartName of the main-document Override, whichever
// attribute order the producer wrote.
var bodyOverride = regexp.MustCompile(
	`<Override[^>]*?PartName="([^"]+)"[^>]*?ContentType="` + regexp.QuoteMeta(docxBodyType) + `"` +
		`|<Override[^>]*?ContentType="` + regexp.QuoteMeta(docxBodyType) + `"[^>]*?PartName="([^"]+)"`)

// extractDOCX collects every text node from the OOXML body, space-joined so
// content survives regardless of paragraph and run structure. Legacy binary
// .doc files are not zip archives and fail the open, which counts as that
// single document's failure.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	body := docxBodyPart
	if types, err := readZipPart(zr, "[Content_Types].xml"); err == nil {
		if m := bodyOverride.FindSubmatch(types); m != nil {
			part := string(m[1])
			if part == "" {
				part = string(m[2])
			}
			body = strings.TrimPrefix(part, "/")
		}
	}

	xml, err := readZipPart(zr, body)
	if err != nil {
		return "", fmt.Errorf("docx body: %w", err)
	}
	var b strings.Builder
	for _, m := range runText.FindAllSubmatch(xml, -1) {
		text := bytes.TrimSpace(m[1])
		if len(text) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.Write(text)
	}
	return b.String(), nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
