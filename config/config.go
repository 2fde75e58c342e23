// Package config resolves ledger settings from the environment and .env files.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"library-ledger/library"
)

// Environment variables read by Load.
const (
	EnvDriver    = "LEDGER_DRIVER"
	EnvDSN       = "LEDGER_DSN"
	EnvGraceDays = "LEDGER_GRACE_DAYS"
	EnvDailyRate = "LEDGER_DAILY_RATE"
	EnvLowStock  = "LEDGER_LOW_STOCK"
	EnvFormat    = "LEDGER_FORMAT"
	EnvLogLevel  = "LEDGER_LOG_LEVEL"
	EnvTxTimeout = "LEDGER_TX_TIMEOUT"
)

// DefaultEnvFiles are read, in order, by Load when no files are named.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	Driver    string
	DSN       string
	Fines     library.FinePolicy
	LowStock  int
	Format    string
	LogLevel  slog.Level
	TxTimeout time.Duration
}

// Default is the configuration with nothing set.
func Default() Config {
	return Config{
		Driver:    "sqlite3",
		DSN:       "library.db",
		Fines:     library.DefaultFinePolicy(),
		LowStock:  2,
		Format:    "table",
		LogLevel:  slog.LevelInfo,
		TxTimeout: 5 * time.Second,
	}
}

// Load reads the env files (missing ones are skipped) and then the process
// environment. Variables already set in the environment win over the files.
// A variable that is set but does not parse is an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
	}

	c := Default()
	c.Driver = getEnv(EnvDriver, c.Driver)
	c.DSN = getEnv(EnvDSN, c.DSN)
	c.Format = getEnv(EnvFormat, c.Format)

	var err error
	if c.Fines.GraceDays, err = intEnv(EnvGraceDays, c.Fines.GraceDays); err != nil {
		return Config{}, err
	}
	rate, err := intEnv(EnvDailyRate, int(c.Fines.DailyRate))
	if err != nil {
		return Config{}, err
	}
	c.Fines.DailyRate = int64(rate)
	if c.LowStock, err = intEnv(EnvLowStock, c.LowStock); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		if c.LogLevel, err = ParseLevel(v); err != nil {
			return Config{}, err
		}
	}
	if v := os.Getenv(EnvTxTimeout); v != "" {
		if c.TxTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTxTimeout, err)
		}
	}
	return c, c.Validate()
}

// Validate checks values that parse but make no sense.
func (c Config) Validate() error {
	if err := c.Fines.Validate(); err != nil {
		return err
	}
	if c.LowStock < 0 {
		return fmt.Errorf("%w: low stock threshold %d is negative", library.ErrInvalidArgument, c.LowStock)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("%w: transaction timeout %s must be positive", library.ErrInvalidArgument, c.TxTimeout)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number", key, v)
	}
	return n, nil
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger builds the text logger every component shares.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// RedactDSN hides the credentials of a URL-style DSN.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
