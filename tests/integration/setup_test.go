package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/safar/go-shop-backend/internal/payment"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func listOrders(t *testing.T, db *sql.DB, userID int64) []models.Order {
	t.Helper()
	page, err := store.ListOrdersByUser(context.Background(), db, userID, "", 100)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	orders, _ := page.Items.([]models.Order)
	return orders
}

const validSignature = "valid-test-signature"

// fakeProvider stands in for the payment processor. Sessions are handed
// out with deterministic ids; webhook payloads are the JSON form of the
// normalized event and only the fixed test signature verifies.
type fakeProvider struct {
	mu         sync.Mutex
	sessions   []payment.CreateSessionParams
	failCreate bool
}

func (f *fakeProvider) CreateSession(_ context.Context, params payment.CreateSessionParams) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return nil, errors.New("processor unavailable")
	}

	f.sessions = append(f.sessions, params)
	id := fmt.Sprintf("cs_test_%d", len(f.sessions))
	return &payment.Session{
		ID:          id,
		RedirectURL: "https://checkout.stripe.test/" + id,
	}, nil
}

type fakeEvent struct {
	Type      payment.EventType `json:"type"`
	SessionID string            `json:"session_id"`
	PaymentID string            `json:"payment_id"`
	OrderID   string            `json:"order_id"`
	UserID    string            `json:"user_id"`
}

func (f *fakeProvider) VerifyWebhook(payload []byte, sigHeader string) (*payment.Event, error) {
	if sigHeader != validSignature {
		return nil, fmt.Errorf("%w: signature mismatch", payment.ErrInvalidSignature)
	}

	var e fakeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	eventType := e.Type
	if eventType == "" {
		eventType = payment.EventUnknown
	}

	return &payment.Event{
		Type:      eventType,
		RawType:   string(e.Type),
		SessionID: e.SessionID,
		PaymentID: e.PaymentID,
		OrderID:   e.OrderID,
		UserID:    e.UserID,
	}, nil
}

func eventPayload(t *testing.T, e fakeEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal event: %v", err)
	}
	return payload
}
