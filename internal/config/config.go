package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Generator GeneratorConfig `mapstructure:"generator"`
	History   HistoryConfig   `mapstructure:"history"`
	Lock      LockConfig      `mapstructure:"lock"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Render    RenderConfig    `mapstructure:"render"`
	Printer   PrinterConfig   `mapstructure:"printer"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type SQLiteConfig struct {
	Path        string `mapstructure:"path"` // "memory" for a shared in-memory database
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// GeneratorConfig shapes the issued credentials.
type GeneratorConfig struct {
	Prefix                string      `mapstructure:"prefix"`
	SSID                  string      `mapstructure:"ssid"`
	FirstName             string      `mapstructure:"first_name"`
	BatchSize             int         `mapstructure:"batch_size"`
	ValidityDays          int         `mapstructure:"validity_days"`
	PasswordLength        int         `mapstructure:"password_length"`
	PasswordAlphabet      string      `mapstructure:"password_alphabet"`
	MaxIdentifierAttempts int         `mapstructure:"max_identifier_attempts"`
	MaxPasswordAttempts   int         `mapstructure:"max_password_attempts"`
	Token                 TokenConfig `mapstructure:"token"`
}

// TokenConfig describes the random part of a guest identifier:
// LetterCount draws from Letters followed by DigitCount draws from Digits.
type TokenConfig struct {
	Letters     string `mapstructure:"letters"`
	LetterCount int    `mapstructure:"letter_count"`
	Digits      string `mapstructure:"digits"`
	DigitCount  int    `mapstructure:"digit_count"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"` // "file" | "postgres" | "sqlite" | "redis" | "memory"
	File    string `mapstructure:"file"`
	Key     string `mapstructure:"key"`
}

type LockConfig struct {
	Backend       string        `mapstructure:"backend"` // "auto" | "file" | "memory" | "redis"
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type StorageConfig struct {
	JSONDir       string        `mapstructure:"json_dir"`
	CSVDir        string        `mapstructure:"csv_dir"`
	PDFDir        string        `mapstructure:"pdf_dir"`
	CSVRetries    int           `mapstructure:"csv_retries"`
	CSVRetryDelay time.Duration `mapstructure:"csv_retry_delay"`
}

type RenderConfig struct {
	Brand          string   `mapstructure:"brand"`
	Author         string   `mapstructure:"author"`
	LogoDir        string   `mapstructure:"logo_dir"`
	LogoCandidates []string `mapstructure:"logo_candidates"`
}

type PrinterConfig struct {
	Backends     []string      `mapstructure:"backends"`
	SumatraPath  string        `mapstructure:"sumatra_path"`
	SwitchScript string        `mapstructure:"switch_script"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"` // empty writes spans to stdout
}

// Load reads config.yaml, overlays environment variables, and returns Config.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: GENERATOR_SSID -> generator.ssid
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 10*time.Second)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.auto_migrate", true)
	v.SetDefault("database.sqlite.path", "data/history.db")
	v.SetDefault("database.sqlite.auto_migrate", true)
	v.SetDefault("database.redis.host", "localhost")
	v.SetDefault("database.redis.port", 6379)

	v.SetDefault("generator.prefix", "TBKG")
	v.SetDefault("generator.ssid", "TBKK-Guest")
	v.SetDefault("generator.first_name", "Guest")
	v.SetDefault("generator.batch_size", 20)
	v.SetDefault("generator.validity_days", 7)
	v.SetDefault("generator.password_length", 6)
	v.SetDefault("generator.password_alphabet", "abcdefghijklmnopqrstuvwxyz0123456789")
	v.SetDefault("generator.max_identifier_attempts", 1000)
	v.SetDefault("generator.max_password_attempts", 1000)
	v.SetDefault("generator.token.letters", "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	v.SetDefault("generator.token.letter_count", 2)
	v.SetDefault("generator.token.digits", "0123456789")
	v.SetDefault("generator.token.digit_count", 2)

	v.SetDefault("history.backend", "file")
	v.SetDefault("history.file", "data/history.json")
	v.SetDefault("history.key", "guestpass:history")

	v.SetDefault("lock.backend", "auto")
	v.SetDefault("lock.key", "guestpass:history:lock")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.retry_interval", 50*time.Millisecond)

	v.SetDefault("storage.json_dir", "output")
	v.SetDefault("storage.csv_dir", "CSV")
	v.SetDefault("storage.pdf_dir", "Wi-Fi ticket")
	v.SetDefault("storage.csv_retries", 3)
	v.SetDefault("storage.csv_retry_delay", 500*time.Millisecond)

	v.SetDefault("render.brand", "TBK Group")
	v.SetDefault("render.author", "TBK Group")
	v.SetDefault("render.logo_dir", "assets")
	v.SetDefault("render.logo_candidates", []string{
		"logo.jpg", "logo.jpeg", "tbk-logo.jpg", "tbk-group-logo.jpg", "tbk-logo.jpeg",
		"tbk-group-logo.jpeg", "logo.png", "tbk-group.png", "tbk-logo.png", "tbk-group-logo.png",
	})

	v.SetDefault("printer.backends", []string{"sumatra", "powershell", "lp"})
	v.SetDefault("printer.sumatra_path", `C:\Program Files\SumatraPDF\SumatraPDF.exe`)
	v.SetDefault("printer.switch_script", "scripts/print-with-default-switch.ps1")
	v.SetDefault("printer.timeout", time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition", "X-Batch-ID", "X-History-Recorded", "X-History-Read"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate rejects configurations the generator cannot work with.
func (c *Config) Validate() error {
	g := c.Generator
	switch {
	case strings.TrimSpace(g.Prefix) == "":
		return fmt.Errorf("generator.prefix is required")
	case g.BatchSize <= 0:
		return fmt.Errorf("generator.batch_size must be greater than 0")
	case g.ValidityDays < 0:
		return fmt.Errorf("generator.validity_days must not be negative")
	case g.PasswordLength <= 0 || g.PasswordAlphabet == "":
		return fmt.Errorf("generator password length and alphabet are required")
	case g.Token.LetterCount < 0 || g.Token.DigitCount < 0:
		return fmt.Errorf("generator.token counts must not be negative")
	case g.Token.LetterCount+g.Token.DigitCount == 0:
		return fmt.Errorf("generator.token must have at least one character")
	case g.Token.LetterCount > 0 && g.Token.Letters == "":
		return fmt.Errorf("generator.token.letters is required")
	case g.Token.DigitCount > 0 && g.Token.Digits == "":
		return fmt.Errorf("generator.token.digits is required")
	}

	switch c.History.Backend {
	case "file", "postgres", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	switch c.Lock.Backend {
	case "auto", "file", "memory", "redis":
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Lock.Backend == "memory" && c.History.Backend == "file" {
		return fmt.Errorf("lock.backend memory cannot serialize processes sharing %s, use auto, file or redis", c.History.File)
	}
	return nil
}

// LockBackend resolves "auto": histories kept in a local file get an OS file
// lock, so a CLI run and a server on the same host exclude each other.
func (c *Config) LockBackend() string {
	if c.Lock.Backend != "auto" {
		return c.Lock.Backend
	}
	switch c.History.Backend {
	case "file":
		return "file"
	case "sqlite":
		if p := c.Database.SQLite.Path; p != "" && p != "memory" {
			return "file"
		}
	}
	return "memory"
}

// LockDir is where file locks live, next to the history they guard.
func (c *Config) LockDir() string {
	if c.History.Backend == "sqlite" {
		return filepath.Dir(c.Database.SQLite.Path)
	}
	return filepath.Dir(c.History.File)
}
