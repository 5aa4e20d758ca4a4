package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the api and sweeper processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Pipeline PipelineConfig
	Sweep    SweepConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// PipelineConfig carries the placement-engine tunables.
// The call window and retry budget are business configuration, not code:
// a deployment may change them without a release.
type PipelineConfig struct {
	// TimeZone is the organization's local zone. All call-window math is
	// done in this zone regardless of where the process runs.
	TimeZone string

	// CallWindowOpenHour/CallWindowCloseHour bound outbound contact,
	// [open, close) in local time.
	CallWindowOpenHour  int
	CallWindowCloseHour int

	MaxCallAttempts   int
	CallRetrySpacing  time.Duration
	StaleClaimTimeout time.Duration
}

// SweepConfig controls the periodic due-call sweep.
type SweepConfig struct {
	Interval    time.Duration
	BatchSize   int
	DispatchRPS float64
	DialerURL   string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Pipeline.TimeZone = strings.TrimSpace(os.Getenv("PIPELINE_TIMEZONE"))
	c.Pipeline.CallWindowOpenHour = optInt("CALL_WINDOW_OPEN_HOUR")
	c.Pipeline.CallWindowCloseHour = optInt("CALL_WINDOW_CLOSE_HOUR")
	c.Pipeline.MaxCallAttempts = optInt("CALL_MAX_ATTEMPTS")
	c.Pipeline.CallRetrySpacing = optDuration("CALL_RETRY_SPACING")
	c.Pipeline.StaleClaimTimeout = optDuration("CALL_STALE_CLAIM_TIMEOUT")

	c.Sweep.Interval = optDuration("SWEEP_INTERVAL")
	c.Sweep.BatchSize = optInt("SWEEP_BATCH_SIZE")
	c.Sweep.DispatchRPS = optFloat("SWEEP_DISPATCH_RPS")
	c.Sweep.DialerURL = strings.TrimSpace(os.Getenv("DIALER_URL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Pipeline.TimeZone == "" {
		c.Pipeline.TimeZone = "Europe/London"
	}
	if _, err := time.LoadLocation(c.Pipeline.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("PIPELINE_TIMEZONE is not a valid IANA zone: %q", c.Pipeline.TimeZone))
	}
	if c.Pipeline.CallWindowOpenHour <= 0 {
		c.Pipeline.CallWindowOpenHour = 9
	}
	if c.Pipeline.CallWindowCloseHour <= 0 {
		c.Pipeline.CallWindowCloseHour = 21
	}
	if c.Pipeline.CallWindowOpenHour >= c.Pipeline.CallWindowCloseHour ||
		c.Pipeline.CallWindowOpenHour < 0 || c.Pipeline.CallWindowCloseHour > 24 {
		errs = append(errs, fmt.Errorf("call window [%d, %d) is not a valid local-hour range",
			c.Pipeline.CallWindowOpenHour, c.Pipeline.CallWindowCloseHour))
	}
	if c.Pipeline.MaxCallAttempts <= 0 {
		// Default budget: roughly 12 working hours of attempts at 30m spacing.
		c.Pipeline.MaxCallAttempts = 24
	}
	if c.Pipeline.CallRetrySpacing <= 0 {
		c.Pipeline.CallRetrySpacing = 30 * time.Minute
	}
	if c.Pipeline.StaleClaimTimeout <= 0 {
		c.Pipeline.StaleClaimTimeout = 10 * time.Minute
	}

	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = time.Minute
	}
	if c.Sweep.BatchSize <= 0 {
		c.Sweep.BatchSize = 50
	}
	if c.Sweep.DispatchRPS <= 0 {
		c.Sweep.DispatchRPS = 5
	}
	// DialerURL is only required by the sweeper binary; it validates separately.

	return joinErrors(errs)
}

// ValidateSweeper enforces the extra requirements of the sweeper process.
func (c *Config) ValidateSweeper() error {
	if c.Sweep.DialerURL == "" {
		return errors.New("DIALER_URL is required for the sweeper")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location resolves the configured pipeline time zone.
// Validate() has already confirmed the zone parses.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optFloat(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
