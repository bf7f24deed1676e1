package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSnapshotConfig(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg, err := CreateSnapshotConfig(0, "", "game.nes")
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
		assert.Empty(t, cfg.Directory)
	})

	t.Run("explicit directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "shots")
		cfg, err := CreateSnapshotConfig(30, dir, "/roms/My Game.gba")
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 30, cfg.Interval)
		assert.Equal(t, dir, cfg.Directory)
		assert.Equal(t, "My Game", cfg.GameName)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("temporary directory", func(t *testing.T) {
		cfg, err := CreateSnapshotConfig(1, "", "")
		require.NoError(t, err)
		defer os.RemoveAll(cfg.Directory)
		assert.DirExists(t, cfg.Directory)
		assert.Equal(t, "pattern", cfg.GameName)
	})
}
