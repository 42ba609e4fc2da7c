package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// odtContentPath is the main content part of an OpenDocument package.
const odtContentPath = "content.xml"

var (
	// odtBlock matches headings and paragraphs in document order.
	odtBlock = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	xmlTag   = regexp.MustCompile(`<[^>]+>`)
)

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

// extractODT returns one line per heading or paragraph of an .odt document.
func extractODT(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", fmt.Errorf("extract ODT: not a zip: %w", err)
	}
	contentXML, err := readZipEntry(zr, odtContentPath)
	if err != nil {
		return "", fmt.Errorf("extract ODT: %w", err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract ODT: %s not found", odtContentPath)
	}
	var lines []string
	for _, m := range odtBlock.FindAllStringSubmatch(string(contentXML), -1) {
		text := xmlEntities.Replace(xmlTag.ReplaceAllString(m[2], ""))
		if text = strings.TrimSpace(text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
