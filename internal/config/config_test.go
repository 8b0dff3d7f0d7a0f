package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "sqlite::memory:", cfg.TrackingURI)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidity)
	assert.Equal(t, 30, cfg.MaxConnections)
	assert.False(t, cfg.AuthEnabled)
	assert.Empty(t, cfg.S3Endpoint)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("CARDKEEPER_TRACKING_URI", "postgres://db/cards")
	t.Setenv("CARDKEEPER_MAX_SQL_CONNECTIONS", "5")
	t.Setenv("CARDKEEPER_AUTH_ENABLED", "true")

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.loadEnv()

	assert.Equal(t, "postgres://db/cards", cfg.TrackingURI)
	assert.Equal(t, 5, cfg.MaxConnections)
	assert.True(t, cfg.AuthEnabled)
}

func TestLoadEnv_StorageCredentials(t *testing.T) {
	t.Setenv("CARDKEEPER_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("CARDKEEPER_S3_ACCESS_KEY", "minio-root")
	t.Setenv("CARDKEEPER_S3_SECRET_KEY", "minio-secret")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "cardkeeperacct")
	t.Setenv("AZURE_STORAGE_KEY", "c2hhcmVkLWtleQ==")

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.loadEnv()

	assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
	assert.Equal(t, "minio-root", cfg.S3AccessKey)
	assert.Equal(t, "minio-secret", cfg.S3SecretKey)
	assert.Equal(t, "cardkeeperacct", cfg.AzureStorageAccount)
	assert.Equal(t, "c2hhcmVkLWtleQ==", cfg.AzureStorageKey)
}

func TestClientMode(t *testing.T) {
	cfg := &Config{TrackingURI: "https://registry.example.com"}
	assert.True(t, cfg.ClientMode())

	cfg.TrackingURI = "sqlite:cards.db"
	assert.False(t, cfg.ClientMode())
}
