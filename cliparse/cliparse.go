package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// HardResetConfirmation is the literal an operator must send to wipe a poll.
const HardResetConfirmation = "HARD RESET"

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	RedisURL     string

	// Secrets
	AdminKey          string
	HashSecret        string
	FingerprintSecret string
	CookieSecret      string

	// Poll
	PollID      string
	OptionCount int

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// FingerprintFields restricts which attributes feed the device signature.
	// Empty means all of them.
	FingerprintFields []string

	// ResetRemovesVote makes an admin device reset also delete the votes
	// linked to that device. Off keeps the tally intact.
	ResetRemovesVote bool

	SecureCookies bool
}

// ParseFlags validates flags and falls back to the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var fields string
	var window string

	fs := flag.NewFlagSet("votegate", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for shared rate limiting (optional)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKey, "admin-key", "", "Admin key (prefer env)")
	fs.StringVar(&cfg.HashSecret, "hash-secret", "", "Voter hash secret (prefer env)")
	fs.StringVar(&cfg.FingerprintSecret, "fingerprint-secret", "", "Fingerprint secret (prefer env)")
	fs.StringVar(&cfg.CookieSecret, "cookie-secret", "", "Cookie signing secret (prefer env)")

	fs.StringVar(&cfg.PollID, "poll", "", "Poll ID")
	fs.IntVar(&cfg.OptionCount, "options", 0, "Number of poll options")
	fs.StringVar(&window, "rate-window", "", "Rate limit window (e.g. 60s)")
	fs.IntVar(&cfg.RateLimitMax, "rate-max", 0, "Requests allowed per window per IP")
	fs.StringVar(&fields, "fingerprint-fields", "", "Comma-separated fingerprint attributes")
	fs.BoolVar(&cfg.ResetRemovesVote, "reset-removes-vote", false, "Delete linked votes on device reset")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", false, "Mark cookies Secure")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	// Secrets - MUST be provided
	if cfg.AdminKey == "" {
		cfg.AdminKey = os.Getenv("ADMIN_KEY")
	}
	if cfg.AdminKey == "" {
		return Config{}, errors.New("ADMIN_KEY required")
	}

	if cfg.HashSecret == "" {
		cfg.HashSecret = os.Getenv("HASH_SECRET")
	}
	if cfg.HashSecret == "" {
		return Config{}, errors.New("HASH_SECRET required")
	}

	if cfg.FingerprintSecret == "" {
		cfg.FingerprintSecret = os.Getenv("FINGERPRINT_SECRET")
	}
	if cfg.FingerprintSecret == "" {
		return Config{}, errors.New("FINGERPRINT_SECRET required")
	}

	// Cookie signing reuses the hash secret unless configured separately
	if cfg.CookieSecret == "" {
		cfg.CookieSecret = os.Getenv("COOKIE_SECRET")
	}
	if cfg.CookieSecret == "" {
		cfg.CookieSecret = cfg.HashSecret
	}

	if cfg.PollID == "" {
		cfg.PollID = os.Getenv("POLL_ID")
		if cfg.PollID == "" {
			cfg.PollID = "default"
		}
	}

	if cfg.OptionCount == 0 {
		n, err := envInt("POLL_OPTIONS", 6)
		if err != nil {
			return Config{}, errors.New("invalid POLL_OPTIONS env variable")
		}
		cfg.OptionCount = n
	}
	if cfg.OptionCount < 1 {
		return Config{}, errors.New("poll needs at least one option")
	}

	if window == "" {
		window = os.Getenv("RATE_LIMIT_WINDOW")
	}
	cfg.RateLimitWindow = time.Minute
	if window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			return Config{}, errors.New("invalid rate limit window")
		}
		cfg.RateLimitWindow = d
	}

	if cfg.RateLimitMax == 0 {
		n, err := envInt("RATE_LIMIT_MAX", 10)
		if err != nil {
			return Config{}, errors.New("invalid RATE_LIMIT_MAX env variable")
		}
		cfg.RateLimitMax = n
	}
	if cfg.RateLimitMax < 1 {
		return Config{}, errors.New("rate limit max must be positive")
	}

	if fields == "" {
		fields = os.Getenv("FINGERPRINT_FIELDS")
	}
	cfg.FingerprintFields = splitList(fields)

	if !set["reset-removes-vote"] {
		cfg.ResetRemovesVote = envBool("RESET_REMOVES_VOTE")
	}
	if !set["secure-cookies"] {
		cfg.SecureCookies = envBool("SECURE_COOKIES")
	}

	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
