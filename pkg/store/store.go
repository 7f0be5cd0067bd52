package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for projects, users and reporting entities.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// InTx runs fn against a Store bound to a single transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Identity.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*User, error)
	GetPrincipal(ctx context.Context, username string) (*reporting.Principal, error)
	GetProjectByName(ctx context.Context, name string) (*Project, error)
	SeedUsers(ctx context.Context, users []config.UserConfig) error

	// Launches.
	CreateLaunch(ctx context.Context, launch *Launch) (bool, error)
	GetLaunch(ctx context.Context, id int64) (*Launch, error)
	UpdateLaunch(ctx context.Context, launch *Launch) error

	// Test items.
	CreateItem(ctx context.Context, item *TestItem) (bool, error)
	GetItem(ctx context.Context, id int64) (*TestItem, error)
	GetItems(ctx context.Context, ids []int64) ([]TestItem, error)
	UpdateItem(ctx context.Context, item *TestItem) error
	MarkHasChildren(ctx context.Context, id int64) error
	ListItems(ctx context.Context, launchID int64) ([]TestItem, error)
	ListInProgressItems(
		ctx context.Context, launchID int64, underPath string,
	) ([]TestItem, error)
	LatestItemEnd(ctx context.Context, launchID int64) (*time.Time, error)
	IncrementStatistics(
		ctx context.Context,
		launchID int64,
		itemIDs []int64,
		st reporting.Status,
	) error
	MoveStatistics(
		ctx context.Context,
		launchID int64,
		itemIDs []int64,
		from, to reporting.Status,
	) error

	// Logs.
	SaveLog(ctx context.Context, entry *LogEntry) error
	HasLogs(ctx context.Context, itemID int64) (bool, error)

	// Sequences.
	NextSequenceValue(ctx context.Context, name string, start int64) (int64, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// SQLite allows a single writer; serialize on one connection.
		sqlDB, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Project{},
		&User{},
		&ProjectMember{},
		&Launch{},
		&TestItem{},
		&LogEntry{},
		&Sequence{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{log: s.log, cfg: s.cfg, db: tx})
	})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
