package types

import "fmt"

// Zone is a coarse spatial region of a page.
type Zone string

const (
	ZoneHeader Zone = "HEADER"
	ZoneFooter Zone = "FOOTER"
	ZoneMargin Zone = "MARGIN"
	ZoneBody   Zone = "BODY"
)

// PositionedToken is one word produced by a document reader.
// Coordinates are in points with the origin at the top-left of the page.
type PositionedToken struct {
	Text     string
	Page     int
	Left     float64
	Top      float64
	Bottom   float64
	FontSize float64
	FontName string
}

// Page is the reader output for one page.
type Page struct {
	Number int
	Width  float64
	Height float64
	Tokens []PositionedToken
}

// Line is a horizontally ordered group of tokens sharing a vertical band on one page.
type Line struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	Index    int     `json:"index"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
	FontSize float64 `json:"font_size"`
	Zone     Zone    `json:"zone"`
}

// Height returns the vertical extent of the line.
func (l Line) Height() float64 {
	return l.Bottom - l.Top
}

// Work is one canonical book or document in the output.
type Work struct {
	WorkID         string   `json:"workId"`
	CanonicalName  string   `json:"canonicalName"`
	ShortCode      string   `json:"shortCode"`
	Testament      string   `json:"testament"`
	CanonicalOrder int      `json:"canonicalOrder"`
	Genre          string   `json:"genre"`
	TotalChapters  int      `json:"totalChapters"`
	TotalUnits     int      `json:"totalUnits"`
	UnitIDs        []string `json:"unitIds"`
}

// Unit is a verse or paragraph.
type Unit struct {
	UnitID        string          `json:"unitId"`
	WorkID        string          `json:"workId"`
	Chapter       int             `json:"chapter"`
	Unit          int             `json:"unit"`
	Text          string          `json:"text"`
	Confidence    float64         `json:"confidence"`
	PageStart     *int            `json:"pageStart,omitempty"`
	PageEnd       *int            `json:"pageEnd,omitempty"`
	Heading       string          `json:"heading,omitempty"`
	ChapterSource DetectionSource `json:"chapterSource,omitempty"`
	Alternatives  []string        `json:"alternatives,omitempty"`
}

// Key identifies a unit within its work.
type Key struct {
	WorkID  string
	Chapter int
	Unit    int
}

// Key returns the unit's identity key.
func (u Unit) Key() Key {
	return Key{WorkID: u.WorkID, Chapter: u.Chapter, Unit: u.Unit}
}

// String renders the key as chapter:unit.
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Chapter, k.Unit)
}

// UnitID formats the deterministic unit identifier.
func UnitID(workID string, chapter, unit int) string {
	return fmt.Sprintf("%s-%03d-%03d", workID, chapter, unit)
}
