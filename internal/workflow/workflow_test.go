package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/services"
	"warung/internal/store"
	"warung/internal/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPayment is a testify mock of the payment collaborator.
type MockPayment struct {
	mock.Mock
}

func (m *MockPayment) Charge(ctx context.Context, reference string, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, reference, amount)
	return args.Bool(0), args.Error(1)
}

// MockEvents is a testify mock of the post-commit event publisher.
type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishOrderCreated(event map[string]interface{}) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockEvents) PublishMail(recipient, subject, body string) error {
	args := m.Called(recipient, subject, body)
	return args.Error(0)
}

// Fixture identities: the bootstrapper seeds admin (id 1) and budi (id 2,
// shipping address and payment reference set).
var (
	adminIdent = identity.Identity{UserID: 1, Role: models.RoleAdmin}
	userIdent  = identity.Identity{UserID: 2, Role: models.RoleUser}
	guestIdent = identity.Guest
)

type testEnv struct {
	store   *store.Store
	engine  *workflow.Engine
	tokens  *services.TokenService
	payment *MockPayment
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:workflow_%s?mode=memory&cache=shared", t.Name())
	s, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Bootstrap(context.Background(), false))

	tokens := services.NewTokenService("test-secret")
	payment := new(MockPayment)
	return &testEnv{
		store:   s,
		engine:  workflow.New(s, tokens, payment, nil),
		tokens:  tokens,
		payment: payment,
	}
}

func (env *testEnv) mkProduct(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := env.store.Transaction(ctx, func(tx *store.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Execute(ctx,
			"INSERT INTO products (name, description, price, stock, created_at, updated_at) VALUES (?, '', ?, ?, ?, ?)",
			name, price, stock, now, now)
		if err != nil {
			return err
		}
		id, err = tx.LastInsertID(ctx)
		return err
	})
	require.NoError(t, err)
	return id
}

func (env *testEnv) mkUser(t *testing.T, username, paymentRef string) identity.Identity {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := env.store.Transaction(ctx, func(tx *store.Tx) error {
		_, err := tx.Execute(ctx,
			`INSERT INTO users (username, password_hash, role, shipping_address, payment_reference, subscribed, created_at)
			 VALUES (?, 'x', 'user', 'Jl. Test 1', ?, 1, ?)`,
			username, paymentRef, time.Now().UTC())
		if err != nil {
			return err
		}
		id, err = tx.LastInsertID(ctx)
		return err
	})
	require.NoError(t, err)
	return identity.Identity{UserID: id, Role: models.RoleUser}
}

func (env *testEnv) mkPurchase(t *testing.T, userID, productID int64) {
	t.Helper()
	_, err := env.store.Execute(context.Background(),
		"INSERT INTO purchases (user_id, product_id, created_at) VALUES (?, ?, ?)",
		userID, productID, time.Now().UTC())
	require.NoError(t, err)
}

func (env *testEnv) cartAdd(t *testing.T, ident identity.Identity, productID int64, quantity int) workflow.CartAddResult {
	t.Helper()
	body := []byte(fmt.Sprintf(`{"product_id": %d, "quantity": %d}`, productID, quantity))
	res, err := env.engine.CartAdd(context.Background(), ident, body)
	require.NoError(t, err)
	return res
}

func (env *testEnv) productStock(t *testing.T, productID int64) int {
	t.Helper()
	var stock int
	found, err := env.store.QueryOne(context.Background(), &stock,
		"SELECT stock FROM products WHERE id = ?", productID)
	require.NoError(t, err)
	require.True(t, found)
	return stock
}

func (env *testEnv) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var n int64
	_, err := env.store.QueryOne(context.Background(), &n, query, args...)
	require.NoError(t, err)
	return n
}

func requireWorkflowError(t *testing.T, err error) *workflow.Error {
	t.Helper()
	require.Error(t, err)
	werr, ok := err.(*workflow.Error)
	require.True(t, ok, "expected workflow error, got %T: %v", err, err)
	return werr
}

func kindOf(t *testing.T, err error) workflow.Kind {
	t.Helper()
	return requireWorkflowError(t, err).Kind
}

func itoa(n int64) string {
	return fmt.Sprintf("%d", n)
}
