package importer

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ParseWorkbook reads the first sheet of an XLSX workbook, treating the
// first row as the header, with the same synonym resolution and row
// filtering as Parse.
func ParseWorkbook(path string) ([]ParsedRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, nil
	}

	fields := resolveHeader(rowToStrings(sheet.Rows[0]))

	var out []ParsedRecord
	for _, row := range sheet.Rows[1:] {
		rec := assembleRecord(fields, rowToStrings(row))
		if rec.Name == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
