package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/config"
)

func TestNewFromConfig_JSONBackend(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "db.json")
	t.Setenv("METADATA_BACKEND", BackendJSON)
	t.Setenv("DB_FILE", dbFile)

	cfg := config.New()
	cfg.EnableEnv("")

	repo, closer := NewFromConfig(cfg)
	require.Nil(t, closer)

	rec := model.ImageRecord{ID: "a", Name: "a.jpg", URL: "/uploads/a.jpg", Size: 1, Format: "image/jpeg"}
	require.NoError(t, repo.Append(context.Background(), model.CollectionOriginals, &rec))

	// второй экземпляр поверх того же файла видит запись
	again := NewJSONImageRepo(dbFile)
	got, err := again.FindByID(context.Background(), model.CollectionOriginals, "a")
	require.NoError(t, err)
	require.Equal(t, "a.jpg", got.Name)
}

func TestMigrationsSource(t *testing.T) {
	src, err := migrationsSource("./migrations")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(src, "file:///"))
	require.True(t, strings.HasSuffix(src, "/migrations"))
}
