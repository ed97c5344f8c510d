package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-provisioning-api/internal/domain"
)

const defaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Verdict holds the verification result returned by the siteverify endpoint.
type Verdict struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
}

// Verifier checks client-supplied tokens against an external
// human-verification service.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Verdict, error)
}

type client struct {
	secret     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a siteverify client bound to the given shared secret.
func NewClient(secret string) Verifier {
	return &client{
		secret:     secret,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify posts the caller's token to the verification service and returns the
// raw verdict. Threshold policy belongs to the caller, not this client.
func (c *client) Verify(ctx context.Context, token string) (*Verdict, error) {
	form := url.Values{
		"secret":   {c.secret},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteverify call failed: %w", domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("siteverify response: %w", domain.ErrUnavailable)
	}
	return &v, nil
}
