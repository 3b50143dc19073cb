package models

import "time"

// User is a registered customer. Number is the unique phone number used as
// the login name.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Number       string
	PasswordSalt string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser is a validated registration request.
type NewUser struct {
	FirstName       string
	LastName        string
	Number          string
	Password        string
	ConfirmPassword string
}

// UserUpdate carries a partial profile update. Nil fields are left unchanged.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Number    *string
}

func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Number == nil
}

// Apply returns a copy of user with the non-nil fields of u set.
func (u UserUpdate) Apply(user User) User {
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Number != nil {
		user.Number = *u.Number
	}
	return user
}
