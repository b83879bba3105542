package model

// Predicate is an extra equality filter a polymorphic dependent collection
// requires before its foreign key may be repointed.
type Predicate struct {
	Column string
	Value  string
}

// DependentCollection describes one collection holding foreign keys to
// restaurant records. Each collection declares its own filter-building
// rule; the repair engine never special-cases individual collections.
type DependentCollection struct {
	Name          string     // collection (table) name
	ForeignKey    string     // column holding the restaurant id
	Discriminator *Predicate // optional, e.g. notes keyed by target id + target type
}

// Dependents lists every collection referencing restaurants. Notes are
// polymorphic: they key a generic target id plus a target-type
// discriminator, so repointing must filter on both.
var Dependents = []DependentCollection{
	{Name: "orders", ForeignKey: "restaurant_id"},
	{Name: "leads", ForeignKey: "restaurant_id"},
	{Name: "visits", ForeignKey: "restaurant_id"},
	{Name: "notes", ForeignKey: "target_id", Discriminator: &Predicate{Column: "target_type", Value: "restaurant"}},
	{Name: "meetings", ForeignKey: "restaurant_id"},
	{Name: "calls", ForeignKey: "restaurant_id"},
	{Name: "voice_memos", ForeignKey: "restaurant_id"},
}

// DependentRef is a minimal dependent row used for seeding and counting.
// TargetType is only meaningful for discriminated collections.
type DependentRef struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	TargetType   string `json:"target_type,omitempty"`
}
