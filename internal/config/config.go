package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default ports used when APP_DB_PORT is unset.
const (
	DefaultMySQLPort    = 3306
	DefaultPostgresPort = 5432
)

// Data source kinds.
const (
	SourceSQLite   = "sqlite"
	SourceMySQL    = "mysql"
	SourcePostgres = "postgres"
	SourceJSON     = "json"
)

// Config holds runtime configuration for the report service and CLI.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string

	DataSource     string
	SQLitePath     string
	JSONPath       string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	PostgresURL    string
	DBConnTimeout  time.Duration
	DBQueryTimeout time.Duration

	Layout       string
	Debounce     time.Duration
	LiveOrigins  []string
	LiveMaxConns int

	OutputDir   string
	S3Enabled   bool
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3AccessKey string
	S3SecretKey string
}

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	return Config{
		ListenAddr:      getEnv("APP_LISTEN_ADDR", ":8080"),
		ReadTimeout:     time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 10)) * time.Second,
		WriteTimeout:    time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 20)) * time.Second,
		ShutdownTimeout: time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		LogLevel:        getEnv("APP_LOG_LEVEL", "info"),
		LogFormat:       getEnv("APP_LOG_FORMAT", "json"),
		DataSource:      strings.ToLower(getEnv("APP_DATA_SOURCE", SourceSQLite)),
		SQLitePath:      getEnv("APP_SQLITE_PATH", "./data/nitfix.sqlite.db"),
		JSONPath:        getEnv("APP_JSON_PATH", ""),
		DBHost:          getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:          getEnvInt("APP_DB_PORT", 0),
		DBUser:          getEnv("APP_DB_USER", "nitfix"),
		DBPassword:      getEnv("APP_DB_PASSWORD", ""),
		DBName:          getEnv("APP_DB_NAME", "nitfix"),
		DBSSLMode:       getEnv("APP_DB_SSLMODE", "disable"),
		PostgresURL:     getEnv("APP_PG_URL", ""),
		DBConnTimeout:   time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout:  time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 10)) * time.Second,
		Layout:          getEnv("APP_LAYOUT", "nitfix"),
		Debounce:        time.Duration(getEnvInt("APP_DEBOUNCE_MS", 250)) * time.Millisecond,
		LiveOrigins:     getEnvList("APP_LIVE_ALLOWED_ORIGINS", nil),
		LiveMaxConns:    getEnvInt("APP_LIVE_MAX_CONNS", 64),
		OutputDir:       getEnv("APP_OUTPUT_DIR", "./output"),
		S3Enabled:       getEnvBool("APP_S3_ENABLED", false),
		S3Bucket:        getEnv("APP_S3_BUCKET", ""),
		S3Prefix:        getEnv("APP_S3_PREFIX", "reports"),
		S3Region:        getEnv("APP_S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("APP_S3_ENDPOINT", ""),
		S3PathStyle:     getEnvBool("APP_S3_PATH_STYLE", false),
		S3AccessKey:     getEnv("APP_S3_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("APP_S3_SECRET_ACCESS_KEY", ""),
	}
}

// Validate reports settings that would fail later in a less obvious place.
func (c Config) Validate() error {
	switch c.DataSource {
	case SourceSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("APP_SQLITE_PATH is required for the sqlite source")
		}
	case SourceJSON:
		if strings.TrimSpace(c.JSONPath) == "" {
			return fmt.Errorf("APP_JSON_PATH is required for the json source")
		}
	case SourceMySQL, SourcePostgres:
	default:
		return fmt.Errorf("unknown data source %q", c.DataSource)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("APP_DEBOUNCE_MS must not be negative")
	}
	if c.S3Enabled && strings.TrimSpace(c.S3Bucket) == "" {
		return fmt.Errorf("APP_S3_BUCKET is required when S3 publishing is enabled")
	}
	return nil
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./platereport.env",
		"/etc/default/platereport",
	}

	for _, candidate := range bootstrapCandidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}
		_ = applyEnvDefaultsFromFile(abs)
	}

	candidates := make([]string, 0, 2)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "/etc/platereport/config.env")

	for _, candidate := range candidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}

		if err := applyEnvDefaultsFromFile(abs); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "app-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/platereport/secrets.env")
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := applyEnvDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

func applyEnvDefaultsFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}

		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}

	return scanner.Err()
}

// Port returns DBPort, or def when no port was configured.
func (c Config) Port(def int) int {
	if c.DBPort > 0 {
		return c.DBPort
	}
	return def
}

// MySQLDSN returns a mysql driver DSN with safe defaults for TCP access.
func (c Config) MySQLDSN() string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("timeout", c.DBConnTimeout.String())
	params.Set("readTimeout", c.DBQueryTimeout.String())
	params.Set("writeTimeout", c.DBQueryTimeout.String())
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.DBUser, c.DBPassword, c.DBHost, c.Port(DefaultMySQLPort), c.DBName, params.Encode())
}

// PostgresDSN returns APP_PG_URL when set, otherwise a postgres URL built
// from the shared APP_DB_* settings.
func (c Config) PostgresDSN() string {
	if dsn := strings.TrimSpace(c.PostgresURL); dsn != "" {
		return dsn
	}
	params := url.Values{}
	params.Set("sslmode", c.DBSSLMode)
	params.Set("connect_timeout", strconv.Itoa(int(c.DBConnTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.Port(DefaultPostgresPort)),
		Path:     "/" + c.DBName,
		RawQuery: params.Encode(),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvList(key string, def []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		out := make([]string, 0, len(def))
		for _, d := range def {
			d = strings.TrimSpace(d)
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
