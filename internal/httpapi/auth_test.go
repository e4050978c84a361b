package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"posledger/internal/domain"
	"posledger/internal/service"
	"posledger/internal/store"
	"posledger/internal/store/memory"
)

func newAuth(t *testing.T, repo store.UserStore) *AuthManager {
	t.Helper()
	return NewAuthManager(context.Background(), "test-secret-key", time.Hour, repo, zaptest.NewLogger(t))
}

func TestLoginIssuesTokenWithRoleAndCapabilities(t *testing.T) {
	auth := newAuth(t, memory.NewSeeded())

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: " Manager ", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, resp.Role)
	assert.Contains(t, resp.Capabilities, "view_reports")
	assert.NotContains(t, resp.Capabilities, "manage_users")

	actor, err := auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "manager", actor.Username)
	assert.Equal(t, domain.RoleManager, actor.Role)
	assert.NotZero(t, actor.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newAuth(t, memory.NewSeeded())

	_, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := memory.New()
	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	_, err = repo.CreateUser(context.Background(), domain.UserAccount{Username: "retired", Password: hash, Role: domain.RoleCashier})
	require.NoError(t, err)

	_, err = newAuth(t, repo).Login(context.Background(), domain.LoginRequest{Username: "retired", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestBootstrapUpgradesPlainTextPasswords(t *testing.T) {
	repo := memory.New()
	_, err := repo.CreateUser(context.Background(), domain.UserAccount{Username: "legacy", Password: "plain-pass", Role: domain.RoleCashier, Active: true})
	require.NoError(t, err)

	auth := newAuth(t, repo)

	accounts, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, isPasswordHash(accounts[0].Password))

	_, err = auth.Login(context.Background(), domain.LoginRequest{Username: "legacy", Password: "plain-pass"})
	assert.NoError(t, err)
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	auth := newAuth(t, memory.NewSeeded())

	sign := func(secret string, claims posCustomClaims) string {
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "admin",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 1,
		Role:   domain.RoleAdministrator,
	}

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	expired := valid
	expired.ExpiresAt = jwtlib.NewNumericDate(time.Now().Add(-time.Minute))
	badRole := valid
	badRole.Role = "owner"

	for name, token := range map[string]string{
		"wrong secret": sign("other-secret", valid),
		"wrong issuer": sign("test-secret-key", wrongIssuer),
		"expired":      sign("test-secret-key", expired),
		"unknown role": sign("test-secret-key", badRole),
		"garbage":      "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := auth.ParseToken(sign("test-secret-key", valid))
	assert.NoError(t, err)
}

func TestCreateUserValidatesAndRejectsDuplicates(t *testing.T) {
	repo := memory.NewSeeded()
	auth := newAuth(t, repo)
	ctx := context.Background()

	_, err := auth.CreateUser(ctx, domain.UserCreateRequest{Username: "ab", Password: "123", Role: "owner"})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "role")

	_, err = auth.CreateUser(ctx, domain.UserCreateRequest{Username: "Cashier", Password: "secret1", Role: domain.RoleCashier})
	assert.ErrorIs(t, err, store.ErrConflict)

	user, err := auth.CreateUser(ctx, domain.UserCreateRequest{Username: "Night.Shift", Password: "secret1", Role: domain.RoleCashier})
	require.NoError(t, err)
	assert.Equal(t, "night.shift", user.Username)
	assert.Equal(t, "night.shift", user.Name)
	assert.True(t, user.Active)

	resp, err := auth.Login(ctx, domain.LoginRequest{Username: "night.shift", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCashier, resp.Role)
}

func TestUserRoutes(t *testing.T) {
	api := newTestAPI(t)
	admin := tokenFor(t, api, "admin")

	res := do(t, api, call{method: http.MethodPost, path: "/api/v1/users", token: admin, body: domain.UserCreateRequest{Username: "floor1", Password: "secret1", Role: domain.RoleCashier}})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = do(t, api, call{method: http.MethodPost, path: "/api/v1/users", token: admin, body: domain.UserCreateRequest{Username: "floor1", Password: "secret1", Role: domain.RoleCashier}})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = do(t, api, call{method: http.MethodGet, path: "/api/v1/users", token: admin})
	require.Equal(t, http.StatusOK, res.Code)
	users := decodeBody[map[string][]domain.User](t, res)["users"]
	assert.Len(t, users, 4)
	assert.NotContains(t, res.Body.String(), "$2a$")

	res = do(t, api, call{method: http.MethodGet, path: "/api/v1/users", token: tokenFor(t, api, "manager")})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLoginEndpoint(t *testing.T) {
	api := newTestAPI(t)

	res := do(t, api, call{method: http.MethodPost, path: "/api/v1/auth/login", body: domain.LoginRequest{Username: "admin", Password: "password"}})
	require.Equal(t, http.StatusOK, res.Code)
	login := decodeBody[domain.LoginResponse](t, res)
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, domain.RoleAdministrator, login.Role)

	res = do(t, api, call{method: http.MethodPost, path: "/api/v1/auth/login", body: domain.LoginRequest{Username: "admin", Password: "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
