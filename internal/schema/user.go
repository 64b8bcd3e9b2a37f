package schema

import "fmt"

// UserProfile mirrors the authenticated identity in the local store.
// The ID is the auth provider's user id and acts as the primary key;
// saving a profile with an existing id replaces the record in place.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	LastUpdated string `json:"last_updated"` // refreshed on every write
}

// Validate checks the fields required to save a profile.
func (u *UserProfile) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
