package models

import (
	"encoding/json"
	"strings"
)

// Registrar is a share-registrar directory entry. IPO records refer to it by name only.
type Registrar struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,min=2"`
	Logo        string `json:"logo,omitempty"`
	WebsiteLink string `json:"websiteLink" validate:"required,url"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts the legacy _id key alongside id
func (r *Registrar) UnmarshalJSON(data []byte) error {
	type alias Registrar
	aux := struct {
		*alias
		LegacyID string `json:"_id"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.LegacyID
	}
	return nil
}

// Matches reports whether name refers to this registrar, ignoring case and surrounding space
func (r Registrar) Matches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(name))
}
