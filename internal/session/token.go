package session

import (
	cryrand "crypto/rand"

	cristalbase64 "github.com/cristalhq/base64"
)

// NewToken returns a fresh URL-safe session token.
func NewToken() string {
	var random [21]byte
	cryrand.Read(random[:])
	return cristalbase64.URLEncoding.EncodeToString(random[:])
}
