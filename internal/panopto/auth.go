package panopto

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Signer produces an auth code for payload using the instance application key.
type Signer func(payload, applicationKey string) string

// SignSHA1 is Panopto's auth code scheme: upper-case hex SHA-1 of
// "<payload>|<applicationKey>".
func SignSHA1(payload, applicationKey string) string {
	sum := sha1.Sum([]byte(payload + "|" + applicationKey))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Credential authorizes one batch of calls. It is built per lookup.
type Credential struct {
	AuthCode string
	Password *string
	UserKey  string
}

// NewCredential signs userKey for serverHost. A nil signer means SignSHA1.
func NewCredential(userKey, serverHost, applicationKey string, sign Signer) Credential {
	if sign == nil {
		sign = SignSHA1
	}
	return Credential{
		AuthCode: sign(userKey+"@"+serverHost, applicationKey),
		UserKey:  userKey,
	}
}
