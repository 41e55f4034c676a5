package models

import "encoding/json"

// UserRole is a platform user's access level
type UserRole string

const (
	RoleUser       UserRole = "user"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "superadmin"
)

// PANStatus is the verification state of a PAN document
type PANStatus string

const (
	PANStatusPending  PANStatus = "PENDING"
	PANStatusVerified PANStatus = "VERIFIED"
	PANStatusRejected PANStatus = "REJECTED"
)

// PANDocument is a Permanent Account Number saved on a user's profile
type PANDocument struct {
	PANNumber   string    `json:"panNumber" validate:"required,pan"`
	NameOnPAN   string    `json:"nameOnPan" validate:"required"`
	Status      PANStatus `json:"status" validate:"required,oneof=PENDING VERIFIED REJECTED"`
	DocumentURL string    `json:"documentUrl,omitempty" validate:"omitempty,url"`
}

// User is a platform account as managed from the dashboard
type User struct {
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name"`
	Email        string        `json:"email" validate:"omitempty,email"`
	PhoneNumber  string        `json:"phoneNumber,omitempty"`
	Role         UserRole      `json:"role,omitempty" validate:"omitempty,oneof=user admin superadmin"`
	PANDocuments []PANDocument `json:"panDocuments" validate:"dive"`
}

// UnmarshalJSON accepts the legacy _id key alongside id
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		LegacyID string `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.LegacyID
	}
	return nil
}

// UserUpdate is the editable subset of a user sent on PUT users/{id}
type UserUpdate struct {
	Name        string   `json:"name,omitempty" validate:"omitempty,min=2"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Role        UserRole `json:"role,omitempty" validate:"omitempty,oneof=user admin superadmin"`
}
