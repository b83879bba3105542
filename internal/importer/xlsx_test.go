package importer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "batch.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Restaurant Name", "Area", "Tel"},
		{"Golden Duck", "Yangon", "09-111"},
		{"", "Bago", "09-222"},
		{"Tea House", "Bahan", "09-333"},
	})

	records, err := ParseWorkbook(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Golden Duck", records[0].Name)
	assert.Equal(t, "Yangon", records[0].Township)
	assert.Equal(t, "Tea House", records[1].Name)
}

func TestParseWorkbookHeaderOnly(t *testing.T) {
	path := writeWorkbook(t, [][]string{{"name", "phone"}})

	records, err := ParseWorkbook(path)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestParseWorkbookMissingFile(t *testing.T) {
	_, err := ParseWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
}
