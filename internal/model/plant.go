package model

import "time"

// SunlightPreference is how much direct light a plant wants.
type SunlightPreference string

const (
	FullSun      SunlightPreference = "full_sun"
	PartialShade SunlightPreference = "partial_shade"
	FullShade    SunlightPreference = "full_shade"
)

// SunlightPreferences lists the accepted values in display order.
var SunlightPreferences = []SunlightPreference{FullSun, PartialShade, FullShade}

// Valid reports whether s is one of the three known preferences.
func (s SunlightPreference) Valid() bool {
	switch s {
	case FullSun, PartialShade, FullShade:
		return true
	}
	return false
}

// Plant is a houseplant owned by exactly one user.
//
// LastWatered is nil until the first watering event is logged. PhotoFilename
// is the bare name inside the upload directory, never a path.
type Plant struct {
	ID                 string             `json:"id"`
	OwnerID            string             `json:"ownerId"`
	Name               string             `json:"name"`
	Species            string             `json:"species"`
	Location           string             `json:"location"`
	PhotoFilename      string             `json:"photoFilename,omitempty"`
	WateringFrequency  int                `json:"wateringFrequency"` // days
	SunlightPreference SunlightPreference `json:"sunlightPreference"`
	LastWatered        *time.Time         `json:"lastWatered,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// NextWatering returns when the plant is next due, in UTC, or ok=false if it
// has never been watered.
//
// Days are calendar days in UTC, which are always 24 hours long. AddDate
// keeps very long frequencies from overflowing a time.Duration.
func (p *Plant) NextWatering() (due time.Time, ok bool) {
	if p.LastWatered == nil {
		return time.Time{}, false
	}
	return p.LastWatered.UTC().AddDate(0, 0, p.WateringFrequency), true
}

// OwnedBy reports whether userID owns the plant.
func (p *Plant) OwnedBy(userID string) bool {
	return p.OwnerID != "" && p.OwnerID == userID
}
