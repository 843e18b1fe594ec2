package source

import (
	"fmt"

	"github.com/tsawler/tabula/docx"
	"github.com/tsawler/tabula/model"
)

func openDOCX(path string, opts Options) (*flowReader, error) {
	dr, err := docx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer dr.Close()

	doc, err := dr.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to read DOCX: %w", err)
	}

	var blocks []Block
	for _, p := range doc.Pages {
		for _, el := range p.Elements {
			switch e := el.(type) {
			case *model.Heading:
				blocks = append(blocks, Block{Level: max(e.Level, 1), Lines: []string{e.Text}, PageBreak: e.Level == 1})
			case *model.Paragraph:
				blocks = append(blocks, Block{Lines: []string{e.Text}})
			}
		}
	}

	meta := Metadata{Title: doc.Metadata.Title, Author: doc.Metadata.Author, Format: "docx"}
	r := newFlowReader(blocks, meta)
	opts.Logger.Debug("opened DOCX", "blocks", len(blocks), "pages", r.PageCount())
	return r, nil
}
