// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *model.Event) error {
	return queryCreateEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return queryGetEvent(ctx, s.db, id)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) {
	return queryListEvents(ctx, s.db, filter)
}

func (s *PostgresStore) GetEventsByStatus(ctx context.Context, status model.Status) ([]*model.Event, error) {
	return queryGetEventsByStatus(ctx, s.db, status)
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, event *model.Event) error {
	return queryUpdateEvent(ctx, s.db, event)
}

func (s *PostgresStore) UpdateEventStatus(ctx context.Context, id string, status model.Status) error {
	return queryUpdateEventStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) SaveEventScore(ctx context.Context, id string, score model.ScoreFactors) error {
	return querySaveEventScore(ctx, s.db, id, score)
}

func (s *PostgresStore) FindEventBySource(ctx context.Context, source, title string) (*model.Event, error) {
	return queryFindEventBySource(ctx, s.db, source, title)
}

func (s *PostgresStore) CreateApproval(ctx context.Context, req *model.ApprovalRequest) error {
	return queryCreateApproval(ctx, s.db, req)
}

func (s *PostgresStore) GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	return queryGetApproval(ctx, s.db, id)
}

func (s *PostgresStore) OpenApprovalForEvent(ctx context.Context, eventID string) (*model.ApprovalRequest, error) {
	return queryOpenApprovalForEvent(ctx, s.db, eventID)
}

func (s *PostgresStore) ListOpenApprovals(ctx context.Context) ([]*model.ApprovalRequest, error) {
	return queryListOpenApprovals(ctx, s.db)
}

func (s *PostgresStore) ResolveApproval(ctx context.Context, id string, resp *model.ApprovalResponse) error {
	return queryResolveApproval(ctx, s.db, id, resp)
}

func (s *PostgresStore) ExpireApproval(ctx context.Context, id string) error {
	return queryExpireApproval(ctx, s.db, id)
}

func (s *PostgresStore) MarkApprovalReminded(ctx context.Context, id string) error {
	return queryMarkApprovalReminded(ctx, s.db, id)
}

func (s *PostgresStore) SaveRegistrationResult(ctx context.Context, result *model.RegistrationResult) error {
	return querySaveRegistrationResult(ctx, s.db, result)
}

func (s *PostgresStore) GetRegistrationResult(ctx context.Context, eventID string) (*model.RegistrationResult, error) {
	return queryGetRegistrationResult(ctx, s.db, eventID)
}
