// Package report turns stored crawl results into the final audit artifact:
// rows enriched with WHOIS ownership, exported as a spreadsheet with broken
// links highlighted.
package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"linkaudit/pkg/models"
	"linkaudit/pkg/whois"
)

// Row is one line of the audit report.
type Row struct {
	URL         string
	Status      string
	Referrer    string
	Type        string
	Domain      string
	WhoisStatus string
	Registrant  string
	IsError     bool
}

var headers = []string{"URL", "Status", "Referrer", "Type", "Domain", "WHOIS Status", "Registrant"}

// Build enriches results with WHOIS data, preserving result order. Internal
// rows all share the seed domain's record; external rows resolve through the
// (caching) resolver, so each distinct domain costs at most one lookup.
func Build(ctx context.Context, results []models.CrawlResult, baseDomain string, resolver whois.Resolver) []Row {
	rows := make([]Row, 0, len(results))
	if len(results) == 0 {
		return rows
	}

	seedRecord := resolver.Resolve(ctx, baseDomain)

	for _, r := range results {
		record := seedRecord
		if r.Type == models.TypeExternal {
			record = resolver.Resolve(ctx, r.Domain)
		}
		rows = append(rows, Row{
			URL:         r.URL,
			Status:      r.Status,
			Referrer:    r.Referrer,
			Type:        string(r.Type),
			Domain:      r.Domain,
			WhoisStatus: record.Status,
			Registrant:  record.Owner,
			IsError:     r.IsError(),
		})
	}
	return rows
}

// WriteXLSX exports rows to an xlsx workbook at path: a bold header row,
// one row per result, broken links filled red.
func WriteXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Link Audit"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	errorStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
		Font: &excelize.Font{Color: "9C0006"},
	})
	if err != nil {
		return fmt.Errorf("creating error style: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("writing header %q: %w", h, err)
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return fmt.Errorf("styling header row: %w", err)
	}

	for i, row := range rows {
		rowNum := i + 2
		values := []string{row.URL, row.Status, row.Referrer, row.Type, row.Domain, row.WhoisStatus, row.Registrant}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", rowNum, err)
			}
		}
		if row.IsError {
			startCell, _ := excelize.CoordinatesToCellName(1, rowNum)
			endCell, _ := excelize.CoordinatesToCellName(len(headers), rowNum)
			if err := f.SetCellStyle(sheet, startCell, endCell, errorStyle); err != nil {
				return fmt.Errorf("styling row %d: %w", rowNum, err)
			}
		}
	}

	// Readable default widths for the URL-ish columns.
	f.SetColWidth(sheet, "A", "A", 60)
	f.SetColWidth(sheet, "C", "C", 60)
	f.SetColWidth(sheet, "B", "B", 14)
	f.SetColWidth(sheet, "D", "G", 22)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report to %s: %w", path, err)
	}
	return nil
}
