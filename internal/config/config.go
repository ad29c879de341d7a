package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logging struct {
	Level  string `koanf:"level" json:"level,omitempty"`
	Pretty bool   `koanf:"pretty" json:"pretty,omitempty"`
}

func (l Logging) validate() []error {
	var errs []error
	if _, err := zerolog.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Errorf("level: invalid log level %q: %w", l.Level, err))
	}
	return errs
}

var loggingDefault = Logging{
	Level: "info",
}

type Database struct {
	Host        string `koanf:"host" json:"host,omitempty"`
	Port        int    `koanf:"port" json:"port,omitempty"`
	User        string `koanf:"user" json:"user,omitempty"`
	Password    string `koanf:"password" json:"password,omitempty"`
	DBName      string `koanf:"dbname" json:"dbname,omitempty"`
	SSLMode     string `koanf:"sslmode" json:"sslmode,omitempty"`
	SSLRootCert string `koanf:"sslrootcert" json:"sslrootcert,omitempty"`
	MaxConns    int32  `koanf:"max_conns" json:"max_conns,omitempty"`
}

func (d Database) validate() []error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, errors.New("host cannot be empty"))
	}
	if d.Port == 0 {
		errs = append(errs, errors.New("port cannot be empty"))
	}
	if d.DBName == "" {
		errs = append(errs, errors.New("dbname cannot be empty"))
	}
	// the migration lock pins one pooled connection for the whole run, so a
	// single-connection pool would deadlock against the runner's own queries
	if d.MaxConns != 0 && d.MaxConns < 2 {
		errs = append(errs, errors.New("max_conns must be at least 2"))
	}
	return errs
}

var databaseDefault = Database{
	Host:     "localhost",
	Port:     5432,
	User:     "courselab",
	DBName:   "courselab",
	SSLMode:  "prefer",
	MaxConns: 10,
}

type Migrations struct {
	// Dir is an optional directory of additional SQL migrations layered on
	// top of the migrations embedded in the binary.
	Dir                string `koanf:"dir" json:"dir,omitempty"`
	Table              string `koanf:"table" json:"table,omitempty"`
	LockName           string `koanf:"lock_name" json:"lock_name,omitempty"`
	LockTimeoutSeconds int64  `koanf:"lock_timeout_seconds" json:"lock_timeout_seconds,omitempty"`
	// RetryFailed controls whether a migration that failed on a previous
	// startup is re-attempted. When false, a failed ledger row blocks startup
	// until an operator clears it.
	RetryFailed bool `koanf:"retry_failed" json:"retry_failed"`
}

func (m Migrations) LockTimeout() time.Duration {
	return time.Duration(m.LockTimeoutSeconds) * time.Second
}

func (m Migrations) validate() []error {
	var errs []error
	if m.Table == "" {
		errs = append(errs, errors.New("table cannot be empty"))
	}
	if m.LockName == "" {
		errs = append(errs, errors.New("lock_name cannot be empty"))
	}
	if m.LockTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("lock_timeout_seconds must be positive"))
	}
	if m.Dir != "" {
		if _, err := os.Stat(m.Dir); err != nil {
			errs = append(errs, fmt.Errorf("dir: %w", err))
		}
	}
	return errs
}

var migrationsDefault = Migrations{
	Table:              "schema_migrations",
	LockName:           "courselab:migrations",
	LockTimeoutSeconds: 120,
	RetryFailed:        true,
}

type HTTP struct {
	BindAddr string `koanf:"bind_addr" json:"bind_addr,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty"`
}

func (h HTTP) validate() []error {
	var errs []error
	if h.BindAddr == "" {
		errs = append(errs, errors.New("bind_addr cannot be empty"))
	}
	if h.Port == 0 {
		errs = append(errs, errors.New("port cannot be empty"))
	}
	return errs
}

var httpDefault = HTTP{
	BindAddr: "0.0.0.0",
	Port:     3000,
}

type Config struct {
	HostID     string     `koanf:"host_id" json:"host_id,omitempty"`
	Database   Database   `koanf:"database" json:"database,omitzero"`
	Migrations Migrations `koanf:"migrations" json:"migrations,omitzero"`
	HTTP       HTTP       `koanf:"http" json:"http,omitzero"`
	Logging    Logging    `koanf:"logging" json:"logging,omitzero"`
}

func (c Config) Validate() error {
	var errs []error
	if c.HostID == "" {
		errs = append(errs, errors.New("host_id cannot be empty"))
	}
	for _, err := range c.Database.validate() {
		errs = append(errs, fmt.Errorf("database.%w", err))
	}
	for _, err := range c.Migrations.validate() {
		errs = append(errs, fmt.Errorf("migrations.%w", err))
	}
	for _, err := range c.HTTP.validate() {
		errs = append(errs, fmt.Errorf("http.%w", err))
	}
	for _, err := range c.Logging.validate() {
		errs = append(errs, fmt.Errorf("logging.%w", err))
	}
	return errors.Join(errs...)
}

func DefaultConfig() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Config{}, fmt.Errorf("failed to determine default host_id: %w", err)
	}
	return Config{
		HostID:     hostname,
		Database:   databaseDefault,
		Migrations: migrationsDefault,
		HTTP:       httpDefault,
		Logging:    loggingDefault,
	}, nil
}
