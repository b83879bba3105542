package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompleteness(t *testing.T) {
	assert.Zero(t, Restaurant{Name: "Bare"}.Completeness())
	assert.Equal(t, 2, Restaurant{Name: "Partial", Township: "Yangon", Phone: "123"}.Completeness())
	assert.Equal(t, 5, Restaurant{
		Name:          "Full",
		Township:      "Yangon",
		Address:       "Main St",
		Phone:         "123",
		ContactPerson: "U Ba",
		Remark:        "note",
	}.Completeness())
}

func TestDependentsDeclaration(t *testing.T) {
	assert.Len(t, Dependents, 7)

	var notes *DependentCollection
	for i := range Dependents {
		if Dependents[i].Name == "notes" {
			notes = &Dependents[i]
		} else {
			assert.Nil(t, Dependents[i].Discriminator, Dependents[i].Name)
			assert.Equal(t, "restaurant_id", Dependents[i].ForeignKey)
		}
	}
	if assert.NotNil(t, notes) {
		assert.Equal(t, "target_id", notes.ForeignKey)
		assert.Equal(t, "target_type", notes.Discriminator.Column)
		assert.Equal(t, "restaurant", notes.Discriminator.Value)
	}
}
