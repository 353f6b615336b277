package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scarlet-storefront/auth"
	"scarlet-storefront/cartapi/controllers"
	"scarlet-storefront/cartapi/database"
	"scarlet-storefront/cartapi/routes"
	"scarlet-storefront/cartapi/services"
	"scarlet-storefront/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "cli-secret"

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	products := database.NewMemoryProductRepository(
		models.Product{ID: "serum", Title: "Vitamin C Serum", Price: decimal.RequireFromString("1250.50"), Stock: 5},
		models.Product{ID: "toner", Title: "Rose Toner", Price: decimal.NewFromInt(560), Stock: 1},
	)
	svc := services.NewCartService(database.NewMemoryCartRepository(), products, nil, "", zap.NewNop())
	r := gin.New()
	routes.RegisterCartRoutes(r, controllers.NewCartController(svc), auth.NewVerifier(testSecret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type cliRun struct {
	t           *testing.T
	apiURL      string
	sessionFile string
}

func (c cliRun) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"cartctl", "--api-url", c.apiURL, "--session-file", c.sessionFile}, args...)
	err := newApp(&stdout, &stderr).Run(context.Background(), full)
	return stdout.String(), stderr.String(), err
}

func setup(t *testing.T) cliRun {
	t.Setenv("STOREFRONT_TOKEN", "")
	return cliRun{
		t:           t,
		apiURL:      newBackend(t).URL,
		sessionFile: filepath.Join(t.TempDir(), "scarlet", "session"),
	}
}

func TestSession_PersistsAcrossRuns(t *testing.T) {
	c := setup(t)

	first, _, err := c.run("session")
	require.NoError(t, err)
	second, _, err := c.run("session")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "guest_"))
	assert.Equal(t, first, second)

	stored, err := os.ReadFile(c.sessionFile)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(first), strings.TrimSpace(string(stored)))
}

func TestAddShowUpdateRemove(t *testing.T) {
	c := setup(t)

	out, _, err := c.run("add", "--qty", "2", "serum")
	require.NoError(t, err)
	assert.Contains(t, out, "Vitamin C Serum")
	assert.Contains(t, out, "৳2,501.00")

	out, _, err = c.run("show")
	require.NoError(t, err)
	assert.Contains(t, out, "2 item(s) in your guest cart")

	out, _, err = c.run("update", "serum", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "৳3,751.50")

	out, _, err = c.run("remove", "serum")
	require.NoError(t, err)
	assert.Contains(t, out, "Your guest cart is empty.")
}

func TestAdd_ServerRejectionRollsBack(t *testing.T) {
	c := setup(t)

	_, _, err := c.run("add", "toner")
	require.NoError(t, err)

	out, errOut, err := c.run("add", "toner")
	require.Error(t, err)
	assert.Equal(t, "Only 1 left in stock", err.Error())
	assert.Contains(t, errOut, "[error] Only 1 left in stock")
	assert.Contains(t, out, "1 item(s) in your guest cart")
}

func TestLogin_MergesGuestCart(t *testing.T) {
	c := setup(t)
	token, err := auth.NewVerifier(testSecret).IssueToken("u1", time.Hour)
	require.NoError(t, err)

	_, _, err = c.run("add", "serum")
	require.NoError(t, err)

	out, errOut, err := c.run("login", token)
	require.NoError(t, err)
	assert.Contains(t, errOut, "[success] Your guest cart has been added to your account.")
	assert.Contains(t, out, "1 item(s) in your account cart")

	// the stored login is used by later commands
	out, _, err = c.run("show")
	require.NoError(t, err)
	assert.Contains(t, out, "in your account cart")

	out, _, err = c.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Your guest cart is empty.")
}

func TestToken_RequiresSecret(t *testing.T) {
	c := setup(t)
	t.Setenv("JWT_SECRET", "")

	_, _, err := c.run("token", "u1")
	assert.Error(t, err)

	out, _, err := c.run("token", "--secret", testSecret, "u1")
	require.NoError(t, err)
	userID, err := auth.NewVerifier(testSecret).UserID(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestUnreachableBackend(t *testing.T) {
	c := setup(t)
	c.apiURL = "http://127.0.0.1:1"

	out, errOut, err := c.run("show")
	require.NoError(t, err)
	assert.Contains(t, out, "Your guest cart is empty.")
	assert.Contains(t, errOut, "[warning]")
}
