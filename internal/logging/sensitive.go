// Package logging provides logging setup and masking utilities for
// mitre-shield.
package logging

import (
	"net/url"
	"strings"
)

// SensitiveFields contains field names that should be masked in logs.
var SensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"session_token": true,
	"session_id":    true,
	"authorization": true,
	"bearer":        true,
	"cookie":        true,
	"credentials":   true,
	"mongodb_uri":   true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField checks if a field name is sensitive.
func IsSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)

	if SensitiveFields[lowerField] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}

	return false
}

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(fieldName) {
		return MaskedValue
	}
	return value
}

// MaskToken masks a session token, showing only the first and last four
// characters.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return MaskedValue
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// MaskMongoURI strips credentials from a MongoDB connection string so
// it can be logged at startup. Unparseable URIs are fully masked.
func MaskMongoURI(uri string) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(uri)
	if err != nil {
		return MaskedValue
	}
	if u.User == nil {
		return uri
	}

	rest := strings.TrimPrefix(uri, u.Scheme+"://")
	at := strings.Index(rest, "@")
	if at < 0 {
		return uri
	}
	return u.Scheme + "://" + u.User.Username() + ":" + MaskedValue + rest[at:]
}
