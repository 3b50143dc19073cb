package models

const TokenTypeBearer = "bearer"

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
