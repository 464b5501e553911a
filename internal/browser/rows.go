package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/skillsync/harvester/internal/harvest"
)

// ParseRows extracts table rows from a rendered document snapshot. For each
// element matched by rowSelector it collects the ordered cell texts and the
// inner markup of the first cell.
func ParseRows(html, rowSelector string) ([]harvest.TableRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document snapshot: %w", err)
	}

	var rows []harvest.TableRow
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		row := harvest.TableRow{}
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i == 0 {
				// Html errors only on a nil node, which Each never yields.
				inner, _ := td.Html()
				row.FirstCellHTML = inner
			}
			row.Cells = append(row.Cells, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})
	return rows, nil
}
