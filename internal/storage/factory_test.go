// internal/storage/factory_test.go
package storage_test

import (
	"testing"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/storage"
	"github.com/molsim/dockenergy/internal/storage/memory"
	"github.com/molsim/dockenergy/internal/storage/postgres"
	sqlitestorage "github.com/molsim/dockenergy/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		expected any
	}{
		{"memory", "memory", &memory.Backend{}},
		{"sqlite", "sqlite", &sqlitestorage.Backend{}},
		{"postgres", "postgres", &postgres.Backend{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(storage.Options{
				Storage: config.StorageConfig{
					Type:   tt.typ,
					Memory: config.MemoryConfig{OutputDir: t.TempDir()},
				},
			})
			require.NoError(t, err)
			assert.IsType(t, tt.expected, b)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(storage.Options{Storage: config.StorageConfig{Type: "mongo"}})
	assert.ErrorContains(t, err, "unknown storage type: mongo")
}

func TestMemoryBackend_IsExporter(t *testing.T) {
	b, err := storage.NewBackend(storage.Options{Storage: config.StorageConfig{Type: "memory"}})
	require.NoError(t, err)

	_, ok := b.(storage.Exporter)
	assert.True(t, ok)
	_, ok = b.(storage.Reader)
	assert.False(t, ok)
}
