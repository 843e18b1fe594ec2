package layout

import (
	"sort"
	"strings"

	"github.com/jackzampolin/scroll/internal/types"
)

// DefaultLineTolerance is the vertical distance in points within which tokens
// share a line.
const DefaultLineTolerance = 2.0

// AssembleLines groups tokens into lines. Tokens are sorted by (page, top,
// left); a new line starts when the page changes or the vertical distance from
// the previous token exceeds tolerance. Zone is left empty; use
// AssemblePageLines to carry zones.
func AssembleLines(tokens []types.PositionedToken, tolerance float64) []types.Line {
	return assemble(tokens, tolerance, nil)
}

// AssemblePageLines assembles lines for one page and tags each line with the
// zone of its first token.
func AssemblePageLines(page types.Page, tokens []types.PositionedToken, tolerance, band float64) []types.Line {
	return assemble(tokens, tolerance, func(tok types.PositionedToken) types.Zone {
		return ClassifyZone(tok.Left, tok.Top, page.Width, page.Height, band)
	})
}

func assemble(tokens []types.PositionedToken, tolerance float64, zoneOf func(types.PositionedToken) types.Zone) []types.Line {
	if len(tokens) == 0 {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultLineTolerance
	}

	sorted := make([]types.PositionedToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		return a.Left < b.Left
	})

	var (
		lines   []types.Line
		current []types.PositionedToken
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		lines = append(lines, buildLine(current, zoneOf))
		current = nil
	}

	for _, tok := range sorted {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if tok.Page != prev.Page || abs(tok.Top-prev.Top) > tolerance {
				flush()
			}
		}
		current = append(current, tok)
	}
	flush()

	// Index is the line's position on its page.
	page, idx := -1, 0
	for i := range lines {
		if lines[i].Page != page {
			page, idx = lines[i].Page, 0
		}
		lines[i].Index = idx
		idx++
	}
	return lines
}

func buildLine(tokens []types.PositionedToken, zoneOf func(types.PositionedToken) types.Zone) types.Line {
	// Within a band the order is by left coordinate only.
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Left < tokens[j].Left })

	parts := make([]string, 0, len(tokens))
	bottom := tokens[0].Bottom
	for _, tok := range tokens {
		if t := strings.TrimSpace(tok.Text); t != "" {
			parts = append(parts, t)
		}
		if tok.Bottom > bottom {
			bottom = tok.Bottom
		}
	}

	first := tokens[0]
	line := types.Line{
		Text:     strings.Join(parts, " "),
		Page:     first.Page,
		Left:     first.Left,
		Top:      first.Top,
		Bottom:   bottom,
		FontSize: first.FontSize,
	}
	if zoneOf != nil {
		line.Zone = zoneOf(first)
	}
	return line
}

// FilterZone returns the lines tagged with zone z.
func FilterZone(lines []types.Line, z types.Zone) []types.Line {
	out := make([]types.Line, 0, len(lines))
	for _, l := range lines {
		if l.Zone == z {
			out = append(out, l)
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
