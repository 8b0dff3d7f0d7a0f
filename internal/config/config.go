// Package config handles runtime configuration for cardkeeper, including
// defaults, environment variables, JSON overlay, and command-line flags.
// It is the only package that reads the process environment: every other
// component receives an immutable *Config built once at startup. Storage
// backend credentials live here too; only what a cloud SDK discovers on its
// own (instance profiles, GOOGLE_APPLICATION_CREDENTIALS) bypasses Config.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the card registry.
//
// Fields:
//   - TrackingURI: SQL DSN (sqlite/postgres/mysql) in direct mode, or an
//     http(s):// base URL when the registry talks to a remote server.
//   - StorageURI: gs://, s3://, az:// bucket URI or a local directory path.
//   - ServerAddr: bind address for the HTTP API in server mode.
//   - EncryptSecret: master secret for artifact-key derivation. Do not use
//     test defaults in prod.
//   - Username / Password: credentials for the login exchange.
//   - ProdToken: static token accepted when auth runs in prod mode.
//   - AppEnv: environment tag recorded on every card row.
//   - AccessTokenValidity / RefreshTokenValidity: JWT lifetimes.
//   - MaxConnections: SQL pool bound.
//   - AuthEnabled: when false, token refresh is a no-op and requests carry
//     no credentials (local/dev mode).
//   - S3Endpoint / S3AccessKey / S3SecretKey: S3-compatible endpoint
//     override and its static credentials; empty means the SDK's default
//     chain against real AWS.
//   - AzureStorageAccount / AzureStorageKey: shared-key credential for the
//     Azure backend (required there, SAS presigning needs it).
type Config struct {
	TrackingURI          string
	StorageURI           string
	ServerAddr           string
	EncryptSecret        string
	Username             string
	Password             string
	ProdToken            string
	AppEnv               string
	AccessTokenValidity  time.Duration
	RefreshTokenValidity time.Duration
	MaxConnections       int
	AuthEnabled          bool
	S3Endpoint           string
	S3AccessKey          string
	S3SecretKey          string
	AzureStorageAccount  string
	AzureStorageKey      string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.TrackingURI = "sqlite::memory:"
	c.StorageURI = "./cardkeeper_storage"
	c.ServerAddr = ":8080"
	c.EncryptSecret = "default_encrypt_secret"
	c.Username = "guest"
	c.Password = "guest"
	c.AppEnv = "development"
	c.AccessTokenValidity = 15 * time.Minute
	c.RefreshTokenValidity = 24 * time.Hour
	c.MaxConnections = 30
	c.AuthEnabled = false
}

// loadEnv overlays values from the process environment. This is the single
// place the environment is consulted.
func (c *Config) loadEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&c.TrackingURI, "CARDKEEPER_TRACKING_URI")
	setString(&c.StorageURI, "CARDKEEPER_STORAGE_URI")
	setString(&c.ServerAddr, "CARDKEEPER_SERVER_ADDR")
	setString(&c.EncryptSecret, "CARDKEEPER_ENCRYPT_SECRET")
	setString(&c.Username, "CARDKEEPER_USERNAME")
	setString(&c.Password, "CARDKEEPER_PASSWORD")
	setString(&c.ProdToken, "CARDKEEPER_PROD_TOKEN")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.S3Endpoint, "CARDKEEPER_S3_ENDPOINT")
	setString(&c.S3AccessKey, "CARDKEEPER_S3_ACCESS_KEY")
	setString(&c.S3SecretKey, "CARDKEEPER_S3_SECRET_KEY")
	setString(&c.AzureStorageAccount, "AZURE_STORAGE_ACCOUNT")
	setString(&c.AzureStorageKey, "AZURE_STORAGE_KEY")

	if v, ok := os.LookupEnv("CARDKEEPER_MAX_SQL_CONNECTIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxConnections = n
		}
	}
	if v, ok := os.LookupEnv("CARDKEEPER_AUTH_ENABLED"); ok {
		c.AuthEnabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// ClientMode reports whether the tracking URI points at a remote server
// rather than a SQL backend.
func (c *Config) ClientMode() bool {
	return strings.HasPrefix(c.TrackingURI, "http://") ||
		strings.HasPrefix(c.TrackingURI, "https://")
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment, an optional JSON file, and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.loadEnv()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
