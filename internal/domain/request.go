package domain

import (
	"strings"
	"time"
)

// RequestTTL is how long a pending request stays redeemable after issuance.
// Expiry is enforced by query filter, never by deleting the record.
const RequestTTL = time.Hour

// RequestRetention is the storage TTL for pending-request records. It is
// deliberately much longer than RequestTTL: reaping is hygiene and must never
// be the thing that expires a token.
const RequestRetention = 30 * 24 * time.Hour

// PendingRequest is a time-boxed, token-identified record of an
// email-ownership claim awaiting redemption.
// PK: request_id. GSI: token-index (token, created_at).
type PendingRequest struct {
	RequestID string `json:"request_id" dynamodbav:"request_id"`
	Email     string `json:"email" dynamodbav:"email"`
	Token     string `json:"token" dynamodbav:"token"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"` // Unix seconds
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // storage TTL (Unix seconds)
}

// allowedDomains is the compiled allow-list of institutional email domains.
var allowedDomains = []string{
	"@nic.bc.ca",
	"@northislandcollege.ca",
}

// AllowedEmail reports whether email belongs to one of the allow-listed
// institutional domains.
func AllowedEmail(email string) bool {
	for _, d := range allowedDomains {
		if len(email) > len(d) && strings.HasSuffix(email, d) {
			return true
		}
	}
	return false
}
