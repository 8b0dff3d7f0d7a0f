package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

func TestNewFileSystem_DefaultsToLocal(t *testing.T) {
	cfg := &config.Config{StorageURI: t.TempDir()}
	fs, err := NewFileSystem(context.Background(), cfg, logging.NewJSONLogger(os.Stderr))
	require.NoError(t, err)
	assert.Equal(t, "local", fs.Name())
}

func TestNewFileSystem_AzureRequiresConfiguredCredentials(t *testing.T) {
	// credentials come from Config, not from the process environment
	cfg := &config.Config{StorageURI: "az://container/prefix"}
	_, err := NewFileSystem(context.Background(), cfg, logging.NewJSONLogger(os.Stderr))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be configured")
}
