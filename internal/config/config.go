package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN      string
	HTTPAddr   string
	LogLevel   string
	RedisDSN   string
	R2Endpoint string
	R2Bucket   string

	// raw secrets kept in-memory only; never log these
	R2KeysRaw      string
	AdminSecretKey string
	CORSOrigins    []string

	// analysis parameters, validated at load time
	MinGapDays       int
	MaxGapDays       int
	MinFlowThreshold int
	AnalysisInterval int // minutes between analyzer cycles

	// optional category table override, JSON object of category -> communities
	Categories map[string][]string
}

func Load() (Config, error) {
	// .env is optional; system environment wins when both are set
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		R2Endpoint:     getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:       getenvDefault("R2_BUCKET", ""),
		R2KeysRaw:      os.Getenv("R2_KEYS"),
		AdminSecretKey: getenvDefault("ADMIN_SECRET_KEY", ""),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	if err := cfg.loadAnalysisParams(); err != nil {
		return Config{}, err
	}

	// light validation: ensure secrets are valid json if set
	if cfg.R2KeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &tmp); err != nil {
			return Config{}, errors.New("R2_KEYS must be valid json")
		}
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

// LoadBatch reads only the analysis parameters and category table. The
// one-shot CLI runs without Postgres, redis or the HTTP surface.
func LoadBatch() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{LogLevel: getenvDefault("LOG_LEVEL", "info")}
	if err := cfg.loadAnalysisParams(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) loadAnalysisParams() error {
	var err error
	if cfg.MinGapDays, err = getenvInt("MIN_GAP_DAYS", 7); err != nil {
		return err
	}
	if cfg.MaxGapDays, err = getenvInt("MAX_GAP_DAYS", 180); err != nil {
		return err
	}
	if cfg.MinFlowThreshold, err = getenvInt("MIN_FLOW_THRESHOLD", 5); err != nil {
		return err
	}
	if cfg.AnalysisInterval, err = getenvInt("ANALYSIS_INTERVAL_MINUTES", 60); err != nil {
		return err
	}

	if cfg.MinGapDays < 0 {
		return errors.New("MIN_GAP_DAYS must be >= 0")
	}
	if cfg.MaxGapDays <= cfg.MinGapDays {
		return errors.New("MAX_GAP_DAYS must be greater than MIN_GAP_DAYS")
	}
	if cfg.MinFlowThreshold < 0 {
		return errors.New("MIN_FLOW_THRESHOLD must be >= 0")
	}
	if cfg.AnalysisInterval <= 0 {
		return errors.New("ANALYSIS_INTERVAL_MINUTES must be > 0")
	}

	if raw := os.Getenv("CATEGORIES"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Categories); err != nil {
			return errors.New("CATEGORIES must be a json object of category -> community list")
		}
	}

	return nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", k, err)
	}
	return n, nil
}
