package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_Empty(t *testing.T) {
	assert.Equal(t, "", Text(""))
	assert.Equal(t, "", Text("   "))
}

func TestText_LowerTrimCollapse(t *testing.T) {
	assert.Equal(t, "golden duck", Text("  Golden   Duck "))
	assert.Equal(t, "kfc", Text("KFC"))
	assert.Equal(t, "a b c", Text("a\tb\n c"))
}

func TestPhone_DigitsOnly(t *testing.T) {
	assert.Equal(t, "09123456789", Phone("09-123 456 789"))
	assert.Equal(t, "951234567", Phone("+95 1 234 567"))
	assert.Equal(t, "", Phone("n/a"))
	assert.Equal(t, "", Phone(""))
}

func TestTownship_StripsAdminWords(t *testing.T) {
	assert.Equal(t, "hlaing", Township("Hlaing Township"))
	assert.Equal(t, "hlaing", Township("hlaing"))
	assert.Equal(t, "yangon", Township("Yangon Region"))
	assert.Equal(t, "mandalay", Township("Mandalay City"))
	assert.Equal(t, "south okkalapa", Township("South Okkalapa Tsp."))
}

func TestTownship_Empty(t *testing.T) {
	assert.Equal(t, "", Township(""))
	assert.Equal(t, "", Township("  "))
	// A value that is nothing but admin words normalizes to empty.
	assert.Equal(t, "", Township("Township"))
}

func TestTownship_PreservesContent(t *testing.T) {
	assert.Equal(t, "insein", Township("Insein"))
}
