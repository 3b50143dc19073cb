package models

// Address is a delivery address owned by a single user.
type Address struct {
	ID          int64
	UserID      int64
	Street      string
	HouseNumber string
	Apartment   string
	City        string
	Country     string
}

// AddressUpdate carries a partial address update. Nil fields are left unchanged.
type AddressUpdate struct {
	Street      *string
	HouseNumber *string
	Apartment   *string
	City        *string
	Country     *string
}

// Apply returns a copy of a with the non-nil fields of u set.
func (u AddressUpdate) Apply(a Address) Address {
	if u.Street != nil {
		a.Street = *u.Street
	}
	if u.HouseNumber != nil {
		a.HouseNumber = *u.HouseNumber
	}
	if u.Apartment != nil {
		a.Apartment = *u.Apartment
	}
	if u.City != nil {
		a.City = *u.City
	}
	if u.Country != nil {
		a.Country = *u.Country
	}
	return a
}
