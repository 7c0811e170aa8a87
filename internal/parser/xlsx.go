package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser concatenates every sheet's rows as pipe-delimited lines.
type XLSXParser struct{}

func (p *XLSXParser) Extensions() []string { return []string{".xlsx", ".xls"} }

func (p *XLSXParser) Parse(_ context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteByte('\n')
		}
		sheets = append(sheets, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}
