package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/guard"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler/middleware"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/logging"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/blacklist"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/email"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/hash"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/jwt"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

// In-memory repositories. Only the behaviour the handlers depend on is modelled.

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (r *memUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) RecordFailedLogin(_ context.Context, id uuid.UUID, max int, lockUntil time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FailedLogins++
	if u.FailedLogins >= max {
		u.Status = domain.UserStatusLocked
		u.LockedUntil = &lockUntil
	}
	return u.FailedLogins, nil
}

func (r *memUsers) RecordSuccessfulLogin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FailedLogins = 0
	u.LockedUntil = nil
	u.Status = domain.UserStatusActive
	return nil
}

type memFields struct {
	mu     sync.Mutex
	fields map[uuid.UUID]*domain.Field
}

func (r *memFields) Create(_ context.Context, f *domain.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.fields[f.ID] = &cp
	return nil
}

func (r *memFields) GetByID(_ context.Context, owner, id uuid.UUID) (*domain.Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fields[id]
	if !ok || f.OwnerID != owner {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFields) ListByOwner(_ context.Context, owner uuid.UUID) ([]*domain.Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Field{}
	for _, f := range r.fields {
		if f.OwnerID == owner {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memFields) Update(_ context.Context, f *domain.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.fields[f.ID] = &cp
	return nil
}

func (r *memFields) Delete(_ context.Context, owner, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fields[id]
	if !ok || f.OwnerID != owner {
		return repository.ErrNotFound
	}
	delete(r.fields, id)
	return nil
}

// noDevices is an empty device store; device flows are covered in the service tests.
type noDevices struct{}

func (noDevices) Create(context.Context, *domain.Device) error { return nil }
func (noDevices) GetByID(context.Context, uuid.UUID, uuid.UUID) (*domain.Device, error) {
	return nil, repository.ErrNotFound
}
func (noDevices) List(context.Context, uuid.UUID, *uuid.UUID) ([]*domain.Device, error) {
	return []*domain.Device{}, nil
}
func (noDevices) Update(context.Context, uuid.UUID, *domain.Device) error { return nil }
func (noDevices) Delete(context.Context, uuid.UUID, uuid.UUID) error { return repository.ErrNotFound }
func (noDevices) Touch(context.Context, uuid.UUID, time.Time) error { return nil }

type noReadings struct{}

func (noReadings) Create(context.Context, *domain.Reading) error { return nil }
func (noReadings) ListByField(context.Context, uuid.UUID, int) ([]*domain.Reading, error) {
	return []*domain.Reading{}, nil
}
func (noReadings) Statistics(context.Context, uuid.UUID, time.Time) (*domain.Statistics, error) {
	return &domain.Statistics{Fields: 1, Devices: 2, DevicesOnline: 1}, nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func (r *memProducts) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memProducts) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) List(_ context.Context, f repository.ProductFilter) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range r.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memProducts) AdjustStock(_ context.Context, seller, id uuid.UUID, delta int) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.SellerID != seller {
		return nil, repository.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}
	p.Stock += delta
	cp := *p
	return &cp, nil
}

type testServer struct {
	app    *fiber.App
	users  *memUsers
	redis  *miniredis.Miniredis
	tokens *jwt.TokenService
}

func rsaKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return priv, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.Discard()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	revocations := blacklist.NewTokenBlacklist(rdb)

	priv, pub := rsaKeys(t)
	tokens, err := jwt.NewTokenService(priv, pub, time.Hour, "aquaguard")
	require.NoError(t, err)

	users := &memUsers{users: map[uuid.UUID]*domain.User{}}
	hasher := hash.NewHasher(hash.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	v := validator.NewValidator()

	authService := service.NewAuthService(users, hasher, tokens, revocations, email.NewNoopSender(logger),
		config.AuthConfig{MaxFailedLogins: 3, LockDuration: 15 * time.Minute}, logger)
	farmService := service.NewFarmService(&memFields{fields: map[uuid.UUID]*domain.Field{}}, noDevices{}, noReadings{}, logger)
	marketService := service.NewMarketService(&memProducts{products: map[uuid.UUID]*domain.Product{}})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(middleware.AccessGuard(guard.DefaultRules()))
	SetupRoutes(app,
		NewHealthHandler(map[string]Check{"redis": revocations.Ping}),
		NewAuthHandler(authService, v, false, logger),
		NewFarmHandler(farmService, v, logger),
		NewMarketHandler(marketService, v, logger),
		middleware.AuthMiddleware(tokens, revocations),
	)

	return &testServer{app: app, users: users, redis: mr, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

// signIn registers and logs in, returning the access token.
func (s *testServer) signIn(t *testing.T, emailAddr, role string) string {
	t.Helper()
	resp, _ := s.do(t, http.MethodPost, "/api/register", "", fiber.Map{
		"email": emailAddr, "password": "correct-horse", "name": "Test User", "role": role,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/login", "", fiber.Map{"email": emailAddr, "password": "correct-horse"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = s.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	s.redis.Close()
	resp, body = s.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not ready", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/signup", "", fiber.Map{
		"email": "Thandi@Example.com", "password": "correct-horse", "name": "Thandi", "role": "farmer",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "thandi@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	resp, _ = s.do(t, http.MethodPost, "/api/register", "", fiber.Map{
		"email": "thandi@example.com", "password": "another-pass", "name": "Thandi", "role": "customer",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/user/login", "", fiber.Map{"email": "thandi@example.com", "password": "correct-horse"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == guard.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login sets the token cookie")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, body["token"], cookie.Value)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"admin role", fiber.Map{"email": "a@example.com", "password": "correct-horse", "name": "Al", "role": "admin"}},
		{"short password", fiber.Map{"email": "a@example.com", "password": "short", "name": "Al", "role": "farmer"}},
		{"bad email", fiber.Map{"email": "nope", "password": "correct-horse", "name": "Al", "role": "farmer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/api/register", "", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t, "sipho@example.com", "customer")

	wrong := fiber.Map{"email": "sipho@example.com", "password": "wrong-password"}
	resp, _ := s.do(t, http.MethodPost, "/api/login", "", wrong)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/login", "", wrong)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/login", "", wrong)
	assert.Equal(t, fiber.StatusLocked, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/login", "", fiber.Map{"email": "sipho@example.com", "password": "correct-horse"})
	assert.Equal(t, fiber.StatusLocked, resp.StatusCode)
}

func TestMeAndLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "lerato@example.com", "customer")

	resp, body := s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "lerato@example.com", body["user"].(map[string]interface{})["email"])

	resp, _ = s.do(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token has been revoked", body["error"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/fields", "/api/statistics", "/api/products"} {
		resp, _ := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestFarmRoutesRequireFarmer(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "customer@example.com", "customer")

	resp, _ := s.do(t, http.MethodGet, "/api/fields", token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/products", token, fiber.Map{"name": "Maize", "price_cents": 500, "stock": 10})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestFieldLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "farmer@example.com", "farmer")
	other := s.signIn(t, "neighbour@example.com", "farmer")

	resp, body := s.do(t, http.MethodPost, "/api/fields", token, fiber.Map{
		"name": "North Paddock", "location": "Limpopo", "area_hectares": 12.5, "crop_type": "maize",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = s.do(t, http.MethodGet, "/api/fields", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["fields"], 1)

	resp, _ = s.do(t, http.MethodGet, "/api/fields/"+id, other, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "fields are owner scoped")

	resp, body = s.do(t, http.MethodPut, "/api/fields/"+id, token, fiber.Map{"name": "North Paddock", "area_hectares": 14})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 14.0, body["area_hectares"])

	resp, _ = s.do(t, http.MethodGet, "/api/fields/not-a-uuid", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/fields/"+id, token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, "/api/fields/"+id, token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFieldData(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "farmer@example.com", "farmer")

	resp, _ := s.do(t, http.MethodGet, "/api/field-data", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "field_id is required")

	resp, _ = s.do(t, http.MethodGet, "/api/field-data?field_id="+uuid.NewString(), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/field-data", token, fiber.Map{"device_id": uuid.NewString(), "soil_moisture": 140})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/field-data", token, fiber.Map{"device_id": uuid.NewString(), "soil_moisture": 40})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/statistics", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["devices"])

	resp, _ = s.do(t, http.MethodGet, "/api/devices?field_id=nope", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMarketplace(t *testing.T) {
	s := newTestServer(t)
	farmer := s.signIn(t, "farmer@example.com", "farmer")
	customer := s.signIn(t, "customer@example.com", "customer")

	resp, body := s.do(t, http.MethodPost, "/api/products", farmer, fiber.Map{
		"name": "Tomatoes", "category": "Vegetables", "price_cents": 1500, "stock": 3,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, "vegetables", body["category"])
	assert.Equal(t, "kg", body["unit"])

	resp, body = s.do(t, http.MethodGet, "/api/products?category=vegetables", customer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["products"], 1)

	resp, _ = s.do(t, http.MethodGet, "/api/products?limit=1000", customer, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPatch, "/api/products/"+id+"/inventory", farmer, fiber.Map{"delta": -2})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["stock"])

	resp, body = s.do(t, http.MethodPatch, "/api/products/"+id+"/inventory", farmer, fiber.Map{"delta": -2})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient stock", body["error"])

	resp, _ = s.do(t, http.MethodPatch, "/api/products/"+id+"/inventory", farmer, fiber.Map{"delta": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/products/"+uuid.NewString(), customer, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAccessGuardInFrontOfRoutes(t *testing.T) {
	s := newTestServer(t)
	s.app.Get("/dashboard", func(c *fiber.Ctx) error { return c.SendString("dashboard") })
	s.app.Get("/login", func(c *fiber.Ctx) error { return c.SendString("login") })
	token := s.signIn(t, "farmer@example.com", "farmer")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: guard.TokenCookie, Value: token})
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestRespondError_Unknown(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, logging.Discard(), errors.New("db exploded"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "db exploded")
}
