package models

import (
	"fmt"
	"time"
)

// MaterialType classifies collection membership.
type MaterialType string

const (
	MaterialTypeStudent MaterialType = "STUDENT"
	MaterialTypeTeacher MaterialType = "TEACHER"
)

// CollectionKey is the classification identity of a collection. Keys with
// the same year, material type and project resolve to the same collection.
type CollectionKey struct {
	Year         string
	MaterialType MaterialType
	ProjectID    *string
}

// DisplayName renders the human-facing collection name.
func (k CollectionKey) DisplayName() string {
	label := "Student"
	if k.MaterialType == MaterialTypeTeacher {
		label = "Teacher"
	}
	return fmt.Sprintf("%s - %s", k.Year, label)
}

// Collection groups purchases by usage year and material type. Rows are
// created on demand and never cleaned up when purchases move away.
type Collection struct {
	ID           string       `db:"id" json:"id"`
	Year         string       `db:"year" json:"year"`
	MaterialType MaterialType `db:"material_type" json:"material_type"`
	ProjectID    *string      `db:"project_id" json:"project_id,omitempty"`
	Name         string       `db:"name" json:"name"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// CollectionFilter constrains listing queries.
type CollectionFilter struct {
	Year         string
	MaterialType MaterialType
	Limit        int
	Offset       int
}

// Product is purchasable educational material.
type Product struct {
	ID                     string `db:"id" json:"id"`
	Name                   string `db:"name" json:"name"`
	MaterialClassification string `db:"material_classification" json:"material_classification"`
}

// Purchase records acquired material and its collection link.
type Purchase struct {
	ID             string    `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	MunicipalityID string    `db:"municipality_id" json:"municipality_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	PurchasedOn    time.Time `db:"purchased_on" json:"purchased_on"`
	WillUseInYear  *string   `db:"will_use_in_year" json:"will_use_in_year,omitempty"`
	UsedInYear     *string   `db:"used_in_year" json:"used_in_year,omitempty"`
	CollectionID   *string   `db:"collection_id" json:"collection_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
