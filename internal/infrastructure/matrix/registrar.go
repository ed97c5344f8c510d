package matrix

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-provisioning-api/internal/domain"
)

// Registrar registers local accounts on a federated chat server through its
// shared-secret admin registration endpoint.
type Registrar struct {
	endpoint     string
	sharedSecret string
	httpClient   *http.Client
}

func NewRegistrar(endpoint, sharedSecret string) *Registrar {
	return &Registrar{
		endpoint:     endpoint,
		sharedSecret: sharedSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type registerRequest struct {
	Nonce    string `json:"nonce"`
	Username string `json:"username"`
	Password string `json:"password"`
	MAC      string `json:"mac"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Register fetches a single-use nonce, authenticates the registration with an
// HMAC over nonce\x00username\x00password\x00notadmin, and submits it.
func (r *Registrar) Register(ctx context.Context, username, password string) error {
	nonce, err := r.fetchNonce(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(registerRequest{
		Nonce:    nonce,
		Username: username,
		Password: password,
		MAC:      r.mac(nonce, username, password),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration call failed: %w", domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	var result registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("registration response: %w", domain.ErrUnavailable)
	}
	if result.Error != "" || !result.Success {
		return fmt.Errorf("registration of %q failed: %s: %w", username, result.Error, domain.ErrRejected)
	}
	return nil
}

func (r *Registrar) fetchNonce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nonce fetch failed: %w", domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	var n nonceResponse
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return "", fmt.Errorf("nonce response: %w", domain.ErrUnavailable)
	}
	if n.Nonce == "" {
		return "", fmt.Errorf("empty nonce: %w", domain.ErrUnavailable)
	}
	return n.Nonce, nil
}

// mac computes the hex HMAC-SHA1 the registration endpoint expects:
// key = shared secret, message = nonce NUL username NUL password NUL "notadmin".
func (r *Registrar) mac(nonce, username, password string) string {
	h := hmac.New(sha1.New, []byte(r.sharedSecret))
	io.WriteString(h, nonce)
	h.Write([]byte{0})
	io.WriteString(h, username)
	h.Write([]byte{0})
	io.WriteString(h, password)
	h.Write([]byte{0})
	io.WriteString(h, "notadmin")
	return hex.EncodeToString(h.Sum(nil))
}
