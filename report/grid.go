package report

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Grid is a scraped report table.
type Grid struct {
	Headers []string  `json:"headers"`
	Rows    []GridRow `json:"rows"`
}

// ParseGrid reads an ARIA grid (the outer HTML of a [role=grid] element or a
// whole page) into headers and rows. Rows without cells, or whose cells are all
// blank, are dropped; they are the header row and the grid's filler rows.
func ParseGrid(html string) (Grid, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Grid{}, fmt.Errorf("parse grid html: %w", err)
	}

	var g Grid
	doc.Find(`[role="columnheader"]`).Each(func(_ int, s *goquery.Selection) {
		g.Headers = append(g.Headers, cellText(s))
	})

	doc.Find(`[role="row"]`).Each(func(_ int, s *goquery.Selection) {
		cells := s.Find(`[role="gridcell"]`)
		if cells.Length() == 0 {
			return
		}
		row := make(GridRow, 0, cells.Length())
		blank := true
		cells.Each(func(_ int, c *goquery.Selection) {
			text := cellText(c)
			if text != "" {
				blank = false
			}
			row = append(row, text)
		})
		if !blank {
			g.Rows = append(g.Rows, row)
		}
	})
	return g, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
