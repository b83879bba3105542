package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderSynonyms(t *testing.T) {
	raw := "Restaurant Name,Area,Tel,Owner\n" +
		"Golden Duck,Yangon,09-123456,U Ba\n"

	records := Parse(raw, ',')
	require.Len(t, records, 1)

	assert.Equal(t, "Golden Duck", records[0].Name)
	assert.Equal(t, "Yangon", records[0].Township)
	assert.Equal(t, "09-123456", records[0].Phone)
	assert.Equal(t, "U Ba", records[0].ContactPerson)
}

func TestParseStripsQuotes(t *testing.T) {
	raw := "name,township\n" +
		`"Shwe Palin","Mandalay"` + "\n"

	records := Parse(raw, ',')
	require.Len(t, records, 1)
	assert.Equal(t, "Shwe Palin", records[0].Name)
	assert.Equal(t, "Mandalay", records[0].Township)
}

func TestParseDropsEmptyNameRows(t *testing.T) {
	raw := "name,phone\n" +
		"First,111\n" +
		",222\n" +
		"   ,333\n" +
		"Second,444\n"

	records := Parse(raw, ',')
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0].Name)
	assert.Equal(t, "Second", records[1].Name)
}

func TestParseTabDelimiter(t *testing.T) {
	raw := "name\ttownship\tphone\n" +
		"Tea House\tBahan\t555\n"

	records := Parse(raw, '\t')
	require.Len(t, records, 1)
	assert.Equal(t, "Tea House", records[0].Name)
	assert.Equal(t, "Bahan", records[0].Township)
	assert.Equal(t, "555", records[0].Phone)
}

func TestParseIgnoresUnknownHeaders(t *testing.T) {
	raw := "name,favorite_color\n" +
		"Cafe One,blue\n"

	records := Parse(raw, ',')
	require.Len(t, records, 1)
	assert.Equal(t, "Cafe One", records[0].Name)
	assert.Empty(t, records[0].Remark)
}

func TestParseHeaderOnly(t *testing.T) {
	assert.Nil(t, Parse("name,township\n", ','))
	assert.Nil(t, Parse("", ','))
}

func TestParseRowShorterThanHeader(t *testing.T) {
	raw := "name,township,phone\n" +
		"Short Row,Yangon\n"

	records := Parse(raw, ',')
	require.Len(t, records, 1)
	assert.Equal(t, "Yangon", records[0].Township)
	assert.Empty(t, records[0].Phone)
}

func TestParseCRLF(t *testing.T) {
	raw := "name,phone\r\nCrlf Cafe,777\r\n"

	records := Parse(raw, ',')
	require.Len(t, records, 1)
	assert.Equal(t, "Crlf Cafe", records[0].Name)
}
