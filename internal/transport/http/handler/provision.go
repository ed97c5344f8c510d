package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-provisioning-api/internal/application/provisioning"
	"github.com/go-provisioning-api/internal/domain"
	"github.com/go-provisioning-api/internal/pkg/validate"
)

// ProvisionHandler exposes one provisioning namespace over HTTP. The router
// mounts one instance per backend (relational, federated).
type ProvisionHandler struct {
	svc provisioning.Service
}

func NewProvisionHandler(svc provisioning.Service) *ProvisionHandler {
	return &ProvisionHandler{svc: svc}
}

type issueBody struct {
	// Token is the bot-verification token, not the redemption token.
	Token string `json:"token"`
	Email string `json:"email"`
}

type redeemBody struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Issue handles POST /requests. Always acknowledges generically on reachable
// business branches so callers can't probe which emails have accounts.
func (h *ProvisionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body issueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Info("issue request with undecodable body", "err", err)
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Success"})
		return
	}
	if err := h.svc.IssueRequest(r.Context(), body.Email, body.Token); err != nil {
		slog.Error("issue request failed", "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Success"})
}

// Lookup handles GET /requests/{token}: a read-only probe telling the frontend
// which form to render. It does not consume the token.
func (h *ProvisionHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	intent, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: provisioning.MsgInvalidOrExpired})
		return
	}
	if err != nil {
		slog.Error("token lookup failed", "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: intent.Mode, Email: intent.Email})
}

// Redeem handles POST /accounts: token + password in, provisioned account out.
func (h *ProvisionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var body redeemBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: provisioning.MsgMissingFields})
		return
	}
	if err := validate.Struct(&body); err != nil {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: provisioning.MsgMissingFields})
		return
	}
	msg, err := h.svc.Redeem(r.Context(), body.Token, body.Password)
	if err != nil {
		slog.Error("redeem failed", "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}
