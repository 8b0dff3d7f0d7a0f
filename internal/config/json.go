package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cardkeeper/internal/flagx"
	"github.com/dmitrijs2005/cardkeeper/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "15m" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config struct.
type JsonConfig struct {
	TrackingURI          string         `json:"tracking_uri"`
	StorageURI           string         `json:"storage_uri"`
	ServerAddr           string         `json:"server_addr"`
	EncryptSecret        string         `json:"encrypt_secret"`
	Username             string         `json:"username"`
	Password             string         `json:"password"`
	ProdToken            string         `json:"prod_token"`
	AppEnv               string         `json:"app_env"`
	AccessTokenValidity  timex.Duration `json:"access_token_validity"`
	RefreshTokenValidity timex.Duration `json:"refresh_token_validity"`
	MaxConnections       int            `json:"max_connections"`
	AuthEnabled          *bool          `json:"auth_enabled"`
	S3Endpoint           string         `json:"s3_endpoint"`
	S3AccessKey          string         `json:"s3_access_key"`
	S3SecretKey          string         `json:"s3_secret_key"`
	AzureStorageAccount  string         `json:"azure_storage_account"`
	AzureStorageKey      string         `json:"azure_storage_key"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c / -config flags; when neither is
// set, no JSON file is loaded. Unset fields keep their current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.TrackingURI != "" {
		config.TrackingURI = c.TrackingURI
	}
	if c.StorageURI != "" {
		config.StorageURI = c.StorageURI
	}
	if c.ServerAddr != "" {
		config.ServerAddr = c.ServerAddr
	}
	if c.EncryptSecret != "" {
		config.EncryptSecret = c.EncryptSecret
	}
	if c.Username != "" {
		config.Username = c.Username
	}
	if c.Password != "" {
		config.Password = c.Password
	}
	if c.ProdToken != "" {
		config.ProdToken = c.ProdToken
	}
	if c.AppEnv != "" {
		config.AppEnv = c.AppEnv
	}
	if c.AccessTokenValidity.Duration != 0 {
		config.AccessTokenValidity = c.AccessTokenValidity.Duration
	}
	if c.RefreshTokenValidity.Duration != 0 {
		config.RefreshTokenValidity = c.RefreshTokenValidity.Duration
	}
	if c.MaxConnections > 0 {
		config.MaxConnections = c.MaxConnections
	}
	if c.AuthEnabled != nil {
		config.AuthEnabled = *c.AuthEnabled
	}
	if c.S3Endpoint != "" {
		config.S3Endpoint = c.S3Endpoint
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.AzureStorageAccount != "" {
		config.AzureStorageAccount = c.AzureStorageAccount
	}
	if c.AzureStorageKey != "" {
		config.AzureStorageKey = c.AzureStorageKey
	}
}
