package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration shared by every function.
type Config struct {
	ESign       esign.Config `yaml:"esign"`
	GCP         GCPConfig    `yaml:"gcp"`
	Concurrency int          `yaml:"concurrency"`
}

type GCPConfig struct {
	ProjectID        string `yaml:"projectId"`
	LedgerCollection string `yaml:"ledgerCollection"`
	ArchiveBucket    string `yaml:"archiveBucket"`
	// WorkflowID is optional. When empty no workflow is started after a send.
	WorkflowID       string `yaml:"workflowId"`
	WorkflowLocation string `yaml:"workflowLocation"`
}

func Default() Config {
	return Config{
		ESign: esign.Config{
			Host:              "sandbox.penneo.com/api/v3",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		GCP: GCPConfig{
			LedgerCollection: "casefiles",
			WorkflowLocation: "us-central1",
		},
		Concurrency: 4,
	}
}

// GetEnv reads an environment variable or returns fallback when it is unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads the YAML file at path when it exists, applies environment
// overrides and validates the esign section. An empty path falls back to
// $CONFIG_PATH.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = GetEnv("CONFIG_PATH", "")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.ESign.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.Concurrency <= 0 {
		return Config{}, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"PENNEO_API_KEY", &cfg.ESign.APIKey},
		{"PENNEO_API_SECRET", &cfg.ESign.APISecret},
		{"PENNEO_API_URI", &cfg.ESign.Host},
		{"PROJECT_ID", &cfg.GCP.ProjectID},
		{"FIRESTORE_COLLECTION", &cfg.GCP.LedgerCollection},
		{"ARCHIVE_BUCKET", &cfg.GCP.ArchiveBucket},
		{"WORKFLOW_ID", &cfg.GCP.WorkflowID},
		{"WORKFLOW_LOCATION", &cfg.GCP.WorkflowLocation},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(os.Getenv(s.key)); v != "" {
			*s.dst = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PENNEO_RPS")); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("PENNEO_RPS: %w", err)
		}
		cfg.ESign.RequestsPerSecond = rps
	}
	if raw := strings.TrimSpace(os.Getenv("CASEFILE_CONCURRENCY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("CASEFILE_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	return nil
}

// RequireProjectID is used by functions that talk to GCP services.
func (c Config) RequireProjectID() error {
	if c.GCP.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	return nil
}
