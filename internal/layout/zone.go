// Package layout turns positioned word tokens into zoned lines.
package layout

import "github.com/jackzampolin/scroll/internal/types"

// DefaultBand is the fraction of page height (or width) treated as header,
// footer or margin.
const DefaultBand = 0.08

// ClassifyZone labels a token position relative to its page.
// The header and footer bands are checked before the side margins.
func ClassifyZone(left, top, width, height, band float64) types.Zone {
	if width <= 0 || height <= 0 {
		return types.ZoneBody
	}
	if band <= 0 || band >= 0.5 {
		band = DefaultBand
	}

	switch {
	case top < height*band:
		return types.ZoneHeader
	case top > height*(1-band):
		return types.ZoneFooter
	case left < width*band || left > width*(1-band):
		return types.ZoneMargin
	default:
		return types.ZoneBody
	}
}

// ZoneTokens partitions a page's tokens by zone, preserving input order.
func ZoneTokens(page types.Page, band float64) map[types.Zone][]types.PositionedToken {
	zones := make(map[types.Zone][]types.PositionedToken, 4)
	for _, tok := range page.Tokens {
		z := ClassifyZone(tok.Left, tok.Top, page.Width, page.Height, band)
		zones[z] = append(zones[z], tok)
	}
	return zones
}
