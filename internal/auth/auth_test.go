package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateToken("user-1", domain.RoleTechnician)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, domain.RoleTechnician, claims.Role)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	expired := NewTokenManager("secret", 5)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = tm.ParseToken(old)
	assert.Error(t, err)

	bogus, _, err := tm.GenerateToken("user-1", domain.Role("Overlord"))
	require.NoError(t, err)
	_, err = tm.ParseToken(bogus)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret-pass"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, *domain.User, *domain.User) {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	customer := &domain.User{FullName: "Cora", Email: "cora@example.com", Role: domain.RoleCustomer, Status: domain.UserStatusActive}
	require.NoError(t, users.Create(context.Background(), customer))
	suspended := &domain.User{FullName: "Sam", Email: "sam@example.com", Role: domain.RoleAdmin, Status: domain.UserStatusSuspended}
	require.NoError(t, users.Create(context.Background(), suspended))

	tokens := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tokens, users, "token")

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		actor, err := ActorFromContext(c)
		if err != nil {
			return err
		}
		return c.SendString(string(actor.Role))
	})
	app.Get("/staff", mw.Handle, RequireStaff(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	return app, tokens, customer, suspended
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens, customer, suspended := newTestApp(t)
	token, _, err := tokens.GenerateToken(customer.ID, customer.Role)
	require.NoError(t, err)
	suspendedToken, _, err := tokens.GenerateToken(suspended.ID, suspended.Role)
	require.NoError(t, err)
	ghostToken, _, err := tokens.GenerateToken("missing", domain.RoleAdmin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		cookie string
		status int
	}{
		{name: "no credentials", path: "/me", status: http.StatusUnauthorized},
		{name: "bad scheme", path: "/me", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "bearer", path: "/me", header: "Bearer " + token, status: http.StatusOK},
		{name: "cookie", path: "/me", cookie: token, status: http.StatusOK},
		{name: "unknown user", path: "/me", header: "Bearer " + ghostToken, status: http.StatusUnauthorized},
		{name: "suspended", path: "/me", header: "Bearer " + suspendedToken, status: http.StatusUnauthorized},
		{name: "customer on staff route", path: "/staff", header: "Bearer " + token, status: http.StatusForbidden},
		{name: "customer on admin route", path: "/admin", header: "Bearer " + token, status: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tc.cookie})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
