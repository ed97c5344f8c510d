package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AccountKind is the constant partition value of the account-index GSI,
// letting the store return accounts ordered by name.
const AccountKind = "account"

const accountPrefix = "user"

// AccountRecord maps a verified email to its sequentially assigned login name.
// PK: account_id. GSIs: email-index (email), account-index (kind, account).
// Records are created once and never mutated; re-redemptions re-provision the
// same account on the backend instead.
type AccountRecord struct {
	AccountID string `json:"account_id" dynamodbav:"account_id"`
	Kind      string `json:"kind" dynamodbav:"kind"`
	Email     string `json:"email" dynamodbav:"email"`
	Account   string `json:"account" dynamodbav:"account"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
}

// NextAccount derives the next login name from the greatest existing one:
// strip the fixed prefix, parse, increment, re-pad to four digits.
// An empty last value starts the sequence at user0001.
func NextAccount(last string) (string, error) {
	if last == "" {
		return accountPrefix + "0001", nil
	}
	if len(last) <= len(accountPrefix) {
		return "", fmt.Errorf("malformed account %q: %w", last, ErrBadRequest)
	}
	n, err := strconv.Atoi(last[len(accountPrefix):])
	if err != nil {
		return "", fmt.Errorf("malformed account %q: %w", last, ErrBadRequest)
	}
	return fmt.Sprintf("%s%04d", accountPrefix, n+1), nil
}

// LocalPart returns the segment of email before the '@'. Distinct domains
// sharing a local part collide; that is accepted behavior for the federated
// backend.
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
