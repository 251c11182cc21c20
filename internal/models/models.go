// internal/models/models.go
package models

// ConservationStatus is a read-only threat category used for display and as
// the target of Bird.StatusID.
type ConservationStatus struct {
	ID     int64  `db:"status_id"`
	Name   string `db:"status_name"`
	Colour string `db:"status_colour"`
}

type Bird struct {
	ID             int64   `db:"bird_id"`
	PrimaryName    string  `db:"primary_name"`
	EnglishName    string  `db:"english_name"`
	ScientificName string  `db:"scientific_name"`
	OrderName      string  `db:"order_name"`
	Family         string  `db:"family"`
	Length         float64 `db:"length"`
	Weight         float64 `db:"weight"`
	StatusID       int64   `db:"status_id"`
}

// BirdDetail is a Bird joined with its status and photo. Joined columns are
// empty when the related row is missing.
type BirdDetail struct {
	Bird
	StatusName   string `db:"status_name"`
	StatusColour string `db:"status_colour"`
	Filename     string `db:"filename"`
	Photographer string `db:"photographer"`
}

type Photo struct {
	Filename     string `db:"filename"`
	Photographer string `db:"photographer"`
	BirdID       int64  `db:"bird_id"`
}

// BirdInput is a validated create/update payload.
type BirdInput struct {
	PrimaryName    string
	EnglishName    string
	ScientificName string
	OrderName      string
	Family         string
	Length         float64
	Weight         float64
	StatusID       int64
}
