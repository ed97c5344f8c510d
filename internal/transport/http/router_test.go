package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-provisioning-api/internal/config"
	"github.com/go-provisioning-api/internal/domain"
	"github.com/go-provisioning-api/internal/infrastructure/recaptcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRequestStore struct{ mock.Mock }

func (m *mockRequestStore) Put(ctx context.Context, req *domain.PendingRequest) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockRequestStore) GetByToken(ctx context.Context, token string, issuedAfter int64) (*domain.PendingRequest, error) {
	args := m.Called(ctx, token, issuedAfter)
	if r, _ := args.Get(0).(*domain.PendingRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.AccountRecord, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.AccountRecord); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Last(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockAccountStore) Put(ctx context.Context, a *domain.AccountRecord) error {
	return m.Called(ctx, a).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, token string) (*recaptcha.Verdict, error) {
	args := m.Called(ctx, token)
	if v, _ := args.Get(0).(*recaptcha.Verdict); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockRoleProvisioner struct{ mock.Mock }

func (m *mockRoleProvisioner) Provision(ctx context.Context, account, password string) error {
	return m.Called(ctx, account, password).Error(0)
}

type mockRegistrar struct{ mock.Mock }

func (m *mockRegistrar) Register(ctx context.Context, username, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

// --- helpers ---

type testDeps struct {
	requests       *mockRequestStore
	matrixRequests *mockRequestStore
	accounts       *mockAccountStore
	verifier       *mockVerifier
	mailer         *mockMailer
	db             *mockRoleProvisioner
	registrar      *mockRegistrar
}

func newTestRouter() (http.Handler, *testDeps) {
	d := &testDeps{
		requests:       &mockRequestStore{},
		matrixRequests: &mockRequestStore{},
		accounts:       &mockAccountStore{},
		verifier:       &mockVerifier{},
		mailer:         &mockMailer{},
		db:             &mockRoleProvisioner{},
		registrar:      &mockRegistrar{},
	}
	cfg := &config.Config{
		FrontendBaseURL:       "https://accounts.example.edu/accounts",
		FrontendMatrixBaseURL: "https://accounts.example.edu/accounts-matrix",
		RecaptchaMinScore:     0.7,
	}
	router := NewRouter(cfg, &Deps{
		Requests:       d.requests,
		MatrixRequests: d.matrixRequests,
		Accounts:       d.accounts,
		Verifier:       d.verifier,
		Mailer:         d.mailer,
		DB:             d.db,
		Registrar:      d.registrar,
	})
	return router, d
}

func doJSON(t *testing.T, router http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]string
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

// --- unsupported requests ---

func TestRouter_UnsupportedMethod_Returns500(t *testing.T) {
	router, _ := newTestRouter()
	rec, body := doJSON(t, router, http.MethodDelete, "/accounts", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unsupported request", body["message"])
}

func TestRouter_UnknownPath_Returns500(t *testing.T) {
	router, _ := newTestRouter()
	rec, body := doJSON(t, router, http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unsupported request", body["message"])
}

// --- CORS ---

func TestRouter_CORSHeaderOnResponses(t *testing.T) {
	router, d := newTestRouter()
	d.requests.On("GetByToken", mock.Anything, "deadbeef", mock.Anything).Return(nil, domain.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/requests/deadbeef", nil)
	req.Header.Set("Origin", "https://frontend.example.edu")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/requests", nil)
	req.Header.Set("Origin", "https://frontend.example.edu")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

// --- lookups ---

func TestRouter_Lookup_ExpiredToken(t *testing.T) {
	router, d := newTestRouter()
	d.requests.On("GetByToken", mock.Anything, "deadbeefdeadbeefdeadbeefdeadbeef", mock.Anything).
		Return(nil, domain.ErrNotFound)

	rec, body := doJSON(t, router, http.MethodGet, "/requests/deadbeefdeadbeefdeadbeefdeadbeef", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Invalid or expired link", body["message"])
	assert.Empty(t, body["email"])
}

func TestRouter_Lookup_CreateIntent(t *testing.T) {
	router, d := newTestRouter()
	d.requests.On("GetByToken", mock.Anything, "tok1", mock.Anything).
		Return(&domain.PendingRequest{Email: "a@nic.bc.ca", Token: "tok1"}, nil)
	d.accounts.On("GetByEmail", mock.Anything, "a@nic.bc.ca").Return(nil, domain.ErrNotFound)

	rec, body := doJSON(t, router, http.MethodGet, "/requests/tok1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create", body["message"])
	assert.Equal(t, "a@nic.bc.ca", body["email"])
}

func TestRouter_MatrixLookup_AlwaysCreate(t *testing.T) {
	router, d := newTestRouter()
	d.matrixRequests.On("GetByToken", mock.Anything, "tok2", mock.Anything).
		Return(&domain.PendingRequest{Email: "bob@nic.bc.ca", Token: "tok2"}, nil)

	rec, body := doJSON(t, router, http.MethodGet, "/requests-matrix/tok2", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create", body["message"])
	d.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

// --- issuance ---

func TestRouter_Issue_DisallowedEmailStillAcknowledges(t *testing.T) {
	router, d := newTestRouter()

	rec, body := doJSON(t, router, http.MethodPost, "/requests", map[string]string{
		"token": "captcha-tok",
		"email": "a@gmail.com",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", body["message"])
	d.requests.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRouter_Issue_HappyPath(t *testing.T) {
	router, d := newTestRouter()
	d.verifier.On("Verify", mock.Anything, "captcha-tok").
		Return(&recaptcha.Verdict{Success: true, Score: 0.9}, nil)
	d.requests.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	d.mailer.On("SendEmail", "a@nic.bc.ca", mock.Anything, mock.Anything).Return(nil).Once()

	rec, body := doJSON(t, router, http.MethodPost, "/requests", map[string]string{
		"token": "captcha-tok",
		"email": "a@nic.bc.ca",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", body["message"])
	d.requests.AssertExpectations(t)
	d.mailer.AssertExpectations(t)
}

// --- redemption ---

func TestRouter_Redeem_MissingPassword(t *testing.T) {
	router, _ := newTestRouter()

	rec, body := doJSON(t, router, http.MethodPost, "/accounts", map[string]string{
		"token": "tok",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Missing token or password.", body["message"])
}

func TestRouter_Redeem_CreatesFirstAccount(t *testing.T) {
	router, d := newTestRouter()
	d.requests.On("GetByToken", mock.Anything, "tok", mock.Anything).
		Return(&domain.PendingRequest{Email: "a@nic.bc.ca", Token: "tok"}, nil)
	d.accounts.On("GetByEmail", mock.Anything, "a@nic.bc.ca").Return(nil, domain.ErrNotFound)
	d.accounts.On("Last", mock.Anything).Return("", nil)
	d.accounts.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	d.db.On("Provision", mock.Anything, "user0001", "p@ss").Return(nil).Once()

	rec, body := doJSON(t, router, http.MethodPost, "/accounts", map[string]string{
		"token":    "tok",
		"password": "p@ss",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Added new account: user0001", body["message"])
	d.db.AssertExpectations(t)
}

func TestRouter_MatrixRedeem_RegistersLocalPart(t *testing.T) {
	router, d := newTestRouter()
	d.matrixRequests.On("GetByToken", mock.Anything, "tok", mock.Anything).
		Return(&domain.PendingRequest{Email: "bob@koehler.ca", Token: "tok"}, nil)
	d.registrar.On("Register", mock.Anything, "bob", "p@ss").Return(nil).Once()

	rec, body := doJSON(t, router, http.MethodPost, "/accounts-matrix", map[string]string{
		"token":    "tok",
		"password": "p@ss",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Added new account: bob", body["message"])
	d.registrar.AssertExpectations(t)
}

func TestRouter_Redeem_BackendDown_Returns500(t *testing.T) {
	router, d := newTestRouter()
	d.requests.On("GetByToken", mock.Anything, "tok", mock.Anything).
		Return(&domain.PendingRequest{Email: "a@nic.bc.ca", Token: "tok"}, nil)
	d.accounts.On("GetByEmail", mock.Anything, "a@nic.bc.ca").
		Return(&domain.AccountRecord{Email: "a@nic.bc.ca", Account: "user0005"}, nil)
	d.db.On("Provision", mock.Anything, "user0005", "p@ss").Return(domain.ErrUnavailable)

	rec, body := doJSON(t, router, http.MethodPost, "/accounts", map[string]string{
		"token":    "tok",
		"password": "p@ss",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["message"])
}
