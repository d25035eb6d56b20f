package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog/internal/config"
	"catalog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, overrides map[string]interface{}) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("STORE_DRIVER", config.DriverMemory)
	v.Set("IMAGE_DIR", t.TempDir())
	v.Set("JWT_SECRET", "test_jwt_secret")
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, overrides map[string]interface{}) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(t, overrides), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestServerHealthCheck(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"healthy"`)
	assert.Contains(t, string(body), `"events":false`)
}

func TestRootRedirectsToProducts(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get(fiber.HeaderLocation))
}

func TestUnauthenticatedAccess(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/products", http.StatusUnauthorized},
		{"/auth/me", http.StatusUnauthorized},
		{"/products", http.StatusSeeOther},
		{"/categories", http.StatusSeeOther},
		{"/auth/login", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil)
	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"STORE_DRIVER": config.DriverSQLite,
		"DATABASE_DSN": "file:" + uuid.New().String() + "?mode=memory&cache=shared",
	})
	ctx := context.Background()

	store, err := openStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close(ctx)

	user, err := createUser(ctx, store, cfg, zerolog.Nop(), models.RegisterForm{
		Username:        "root",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	stored, err := store.Users.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
}

func TestCreateUserRejectsInvalidInput(t *testing.T) {
	cfg := testConfig(t, nil)
	ctx := context.Background()
	store, err := openStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = createUser(ctx, store, cfg, zerolog.Nop(), models.RegisterForm{
		Username:        "x",
		Password:        "123",
		ConfirmPassword: "123",
		Role:            "owner",
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"serve"}, {"migrate"}, {"user", "create"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	create, _, err := root.Find([]string{"user", "create"})
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleStaff), create.Flag("role").DefValue)
}
