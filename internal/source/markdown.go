package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	mdHeading  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdStrong   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdEmphasis = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
	mdListItem = regexp.MustCompile(`^\s*[-*+]\s+`)
)

func openMarkdown(path string, opts Options) (*flowReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	blocks, meta, err := ParseMarkdown(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	r := newFlowReader(blocks, meta)
	opts.Logger.Debug("opened markdown", "blocks", len(blocks), "pages", r.PageCount())
	return r, nil
}

// ParseMarkdown splits a Markdown document into blocks. ATX headings become
// heading blocks and a level-1 heading starts a new page. Blank lines end a
// paragraph. Optional YAML front matter supplies the title and author.
func ParseMarkdown(r io.Reader) ([]Block, Metadata, error) {
	meta := Metadata{Format: "markdown"}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var blocks []Block
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, Block{Lines: cur})
			cur = nil
		}
	}

	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if strings.TrimSpace(line) == "---" {
				fm, err := readFrontMatter(sc)
				if err != nil {
					return nil, meta, err
				}
				meta.Title, meta.Author = fm.Title, fm.Author
				continue
			}
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if m := mdHeading.FindStringSubmatch(trimmed); m != nil {
			flush()
			level := len(m[1])
			text := stripEmphasis(m[2])
			blocks = append(blocks, Block{Level: level, Lines: []string{text}, PageBreak: level == 1})
			if meta.Title == "" && level == 1 {
				meta.Title = text
			}
			continue
		}
		if mdListItem.MatchString(line) {
			flush()
			cur = append(cur, stripEmphasis(mdListItem.ReplaceAllString(line, "")))
			flush()
			continue
		}
		cur = append(cur, stripEmphasis(strings.TrimPrefix(trimmed, "> ")))
	}
	if err := sc.Err(); err != nil {
		return nil, meta, fmt.Errorf("failed to scan markdown: %w", err)
	}
	flush()
	return blocks, meta, nil
}

type frontMatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

func readFrontMatter(sc *bufio.Scanner) (frontMatter, error) {
	var buf strings.Builder
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "---" {
			var fm frontMatter
			if err := yaml.Unmarshal([]byte(buf.String()), &fm); err != nil {
				return fm, fmt.Errorf("invalid front matter: %w", err)
			}
			return fm, nil
		}
		buf.WriteString(sc.Text())
		buf.WriteByte('\n')
	}
	return frontMatter{}, fmt.Errorf("unterminated front matter")
}

func stripEmphasis(s string) string {
	return mdEmphasis.ReplaceAllString(mdStrong.ReplaceAllString(s, "$1"), "$1")
}
