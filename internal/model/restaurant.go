// Package model defines the domain types shared across the migration engine.
package model

import "time"

// Restaurant represents a canonical business record in the live population.
type Restaurant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Township      string    `json:"township,omitempty"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Remark        string    `json:"remark,omitempty"`
	AgentID       string    `json:"agent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Completeness counts the optional fields a record actually carries.
// Used to pick the canonical member of an exact duplicate group.
func (r Restaurant) Completeness() int {
	n := 0
	for _, v := range []string{r.Township, r.Address, r.Phone, r.ContactPerson, r.Remark} {
		if v != "" {
			n++
		}
	}
	return n
}

// StagedRestaurant is an imported record held in the staging area
// pending promotion into the live population.
type StagedRestaurant struct {
	Restaurant
	Source string `json:"source"` // provenance note, e.g. the import file name
}

// KnownIdentity is a candidate the matcher scores staged records against.
// Identities are drawn from the identity backup table — records that still
// have live dependent references — not from the current restaurant table.
type KnownIdentity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Township string `json:"township,omitempty"`
}
