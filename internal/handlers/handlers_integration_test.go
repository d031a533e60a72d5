package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"warung/internal/handlers"
	"warung/internal/identity"
	"warung/internal/middleware"
	"warung/internal/services"
	"warung/internal/store"
	"warung/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "warung-test/1.0"

// setupApp wires the full application against an in-memory sqlite database,
// mirroring the production wiring minus the queue client.
func setupApp(t *testing.T) (*fiber.App, *store.Store, *services.TokenService) {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", t.Name())
	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Bootstrap(context.Background(), false))

	resolver := identity.NewResolver(db)
	authService := services.NewAuthService(db, time.Hour)
	tokenService := services.NewTokenService("test_token_secret")
	engine := workflow.New(db, tokenService, services.SimulatedPayment{}, nil)

	app := fiber.New()
	app.Use(middleware.SessionContext(resolver))

	handlers.NewAuthHandler(authService).RegisterRoutes(app)
	handlers.NewCartHandler(engine).RegisterRoutes(app)
	handlers.NewProductHandler(engine).RegisterRoutes(app)
	handlers.NewNewsletterHandler(engine).RegisterRoutes(app)

	return app, db, tokenService
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, path, sessionToken string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUserAgent)
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sessionToken})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func register(t *testing.T, app *fiber.App, username, password, paymentRef string) {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"username":          username,
		"password":          password,
		"shipping_address":  "Jl. Test 9",
		"payment_reference": paymentRef,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == middleware.SessionCookie {
			require.True(t, cookie.HttpOnly, "session cookie must be HttpOnly")
			require.Empty(t, cookie.Domain, "session cookie must be host-only")
			return cookie.Value
		}
	}
	t.Fatal("no session cookie in login response")
	return ""
}

func TestRegisterLoginLogout(t *testing.T) {
	app, _, _ := setupApp(t)

	register(t, app, "sari", "password123", "card-1111")
	token := login(t, app, "sari", "password123")

	resp := doJSON(t, app, http.MethodGet, "/cart", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/cart", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginWrongPassword(t *testing.T) {
	app, _, _ := setupApp(t)
	resp := doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "budi",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCartRequiresSession(t *testing.T) {
	app, _, _ := setupApp(t)
	resp := doJSON(t, app, http.MethodPost, "/cart", "", map[string]any{
		"product_id": 1, "quantity": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminOnlyProductCreate(t *testing.T) {
	app, _, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	// a user-role session gets Forbidden even with an invalid body
	resp := doJSON(t, app, http.MethodPost, "/admin/products/", token, map[string]any{
		"name": "", "price": "nonsense",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "Forbidden", body["error_kind"])
}

func TestHappyCheckoutOverHTTP(t *testing.T) {
	app, _, _ := setupApp(t)

	adminToken := login(t, app, "admin", "admin12345")
	var pen, notebook struct {
		ProductID int64 `json:"product_id"`
	}
	resp := doJSON(t, app, http.MethodPost, "/admin/products/", adminToken, map[string]any{
		"name": "Pen", "description": "", "price": 10.00, "stock": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &pen)

	resp = doJSON(t, app, http.MethodPost, "/admin/products/", adminToken, map[string]any{
		"name": "Notebook", "description": "", "price": 5.50, "stock": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &notebook)

	token := login(t, app, "budi", "rahasia123")

	resp = doJSON(t, app, http.MethodPost, "/cart", token, map[string]any{
		"product_id": pen.ProductID, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodPost, "/cart", token, map[string]any{
		"product_id": notebook.ProductID, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/checkout", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order struct {
		OrderID int64           `json:"order_id"`
		Total   decimal.Decimal `json:"total"`
		Status  string          `json:"status"`
	}
	decodeBody(t, resp, &order)
	assert.NotZero(t, order.OrderID)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("45.50")), "got total %s", order.Total)
	assert.Equal(t, "paid", order.Status)

	// cart is empty afterwards
	resp = doJSON(t, app, http.MethodGet, "/cart", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cart struct {
		Lines []json.RawMessage `json:"lines"`
	}
	decodeBody(t, resp, &cart)
	assert.Empty(t, cart.Lines)

	// purchase gates are open now: a review succeeds
	resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/reviews/%d", pen.ProductID), token, map[string]any{
		"rating": 5, "text": "writes well",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutEmptyCart(t *testing.T) {
	app, _, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	resp := doJSON(t, app, http.MethodPost, "/checkout", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "CartEmpty", body["error_kind"])
}

func TestReviewWithoutPurchase(t *testing.T) {
	app, _, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	resp := doJSON(t, app, http.MethodPost, "/reviews/1", token, map[string]any{
		"rating": 5, "text": "great",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "PurchaseRequired", body["error_kind"])
}

func TestInjectionAttemptOverHTTP(t *testing.T) {
	app, _, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	resp := doJSON(t, app, http.MethodPost, "/cart", token, map[string]any{
		"product_id": "1; DROP TABLE products;--", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		ErrorKind string            `json:"error_kind"`
		Detail    map[string]string `json:"detail"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ValidationFailure", body.ErrorKind)
	assert.Equal(t, "not an integer", body.Detail["product_id"])

	// products table is intact
	resp = doJSON(t, app, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []json.RawMessage
	decodeBody(t, resp, &products)
	assert.Len(t, products, 3)
}

func TestExpiredSessionRejectedAndDeleted(t *testing.T) {
	app, db, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	_, err := db.Execute(context.Background(),
		"UPDATE sessions SET expires_at = ? WHERE token = ?",
		time.Now().UTC().Add(-time.Minute), token)
	require.NoError(t, err)

	resp := doJSON(t, app, http.MethodGet, "/cart", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	var count int64
	_, err = db.QueryOne(context.Background(), &count,
		"SELECT COUNT(*) FROM sessions WHERE token = ?", token)
	require.NoError(t, err)
	assert.Zero(t, count, "expired session row must be deleted")
}

func TestProductReadPublic(t *testing.T) {
	app, _, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodGet, "/products/1", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Laptop", body.Product.Name)

	resp = doJSON(t, app, http.MethodGet, "/products/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUnsubscribeOverHTTP(t *testing.T) {
	app, db, tokens := setupApp(t)

	token, err := tokens.IssueUnsubscribe(2)
	require.NoError(t, err)

	resp := doJSON(t, app, http.MethodPost, "/unsubscribe/"+token, "", map[string]string{
		"reason": "too noisy",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var subscribed bool
	_, err = db.QueryOne(context.Background(), &subscribed,
		"SELECT subscribed FROM users WHERE id = 2")
	require.NoError(t, err)
	assert.False(t, subscribed)

	// the token is single-use
	resp = doJSON(t, app, http.MethodPost, "/unsubscribe/"+token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestFingerprintMismatchRejectsSession(t *testing.T) {
	app, _, _ := setupApp(t)
	token := login(t, app, "budi", "rahasia123")

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("User-Agent", "someone-else/9.9")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
