package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tsawler/tabula/epubdoc"
)

const epubBlockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote > div, pre"

func openEPUB(path string, opts Options) (*flowReader, error) {
	er, err := epubdoc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer er.Close()

	var blocks []Block
	for _, ch := range er.Chapters() {
		chBlocks, err := XHTMLBlocks(ch.Content)
		if err != nil {
			opts.Logger.Warn("skipping unreadable chapter", "chapter", ch.Index, "href", ch.Href, "error", err)
			continue
		}
		if len(chBlocks) > 0 {
			chBlocks[0].PageBreak = true
		}
		blocks = append(blocks, chBlocks...)
	}

	md := er.Metadata()
	meta := Metadata{Title: md.Title, Format: "epub"}
	if len(md.Creator) > 0 {
		meta.Author = strings.Join(md.Creator, ", ")
	}

	r := newFlowReader(blocks, meta)
	opts.Logger.Debug("opened EPUB", "chapters", len(er.Chapters()), "pages", r.PageCount())
	return r, nil
}

// XHTMLBlocks walks one spine document in order and returns its headings
// and paragraphs. Nested matches inside an already selected block are
// skipped.
func XHTMLBlocks(content []byte) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	var blocks []Block
	doc.Find(epubBlockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(epubBlockSelector).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		level := 0
		if name := goquery.NodeName(s); len(name) == 2 && name[0] == 'h' {
			level = int(name[1] - '0')
		}
		blocks = append(blocks, Block{Level: level, Lines: []string{text}})
	})
	return blocks, nil
}
