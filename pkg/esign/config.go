package esign

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the credentials and transport settings for the remote service.
type Config struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	// Host is the API host, with or without scheme. A bare host is served
	// over https.
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond enables client-side throttling when positive.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("esign: api key must be provided")
	}
	if c.APISecret == "" {
		return fmt.Errorf("esign: api secret must be provided")
	}
	if c.Host == "" {
		return fmt.Errorf("esign: api host must be provided")
	}
	return nil
}

// BaseURL returns the API root without a trailing slash.
func (c Config) BaseURL() string {
	host := strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
