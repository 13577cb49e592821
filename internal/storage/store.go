package storage

import (
	"fmt"
	"net/url"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Config holds PostgreSQL connection settings for the run store.
type Config struct {
	Enabled  bool              `json:"enabled"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Database string            `json:"database"`
	SSLMode  string            `json:"sslMode"`
	Params   map[string]string `json:"params"`
	// ConnString overrides all other fields when set.
	ConnString string `json:"connString"`
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}

	host := c.Host
	if host == "" {
		host = defaultHost
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.Database != "" {
		u.Path = "/" + c.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range c.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// Run is one completed backtest or stress run.
type Run struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Label       string `gorm:"index"`
	Symbol      string
	Seed        uint64
	Events      uint64
	Commands    uint64
	Fills       uint64
	FinalEquity float64
	RealizedPnL float64
	MaxDrawdown float64
	Halted      bool
	HaltReason  string
	StateHash   uint64
	CreatedAt   time.Time
}

// RunStore persists run results for later comparison across code and
// config changes.
type RunStore struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the runs table.
func Open(cfg Config) (*RunStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, errors.Wrap(err, "migrate runs")
	}
	return &RunStore{db: db}, nil
}

// Save persists one run record.
func (s *RunStore) Save(run *Run) error {
	if err := s.db.Create(run).Error; err != nil {
		return errors.Wrap(err, "save run")
	}
	return nil
}

// Recent returns the latest runs for a label, newest first.
func (s *RunStore) Recent(label string, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.
		Where("label = ?", label).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	return runs, nil
}

// Close releases the underlying connection pool.
func (s *RunStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
