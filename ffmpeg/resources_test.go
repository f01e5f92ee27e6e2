package ffmpeg

import (
	"testing"

	"fftransform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceChecker(t *testing.T) {
	t.Run("disabled thresholds always pass", func(t *testing.T) {
		c := NewResourceChecker(&config.Config{}, t.TempDir())
		assert.NoError(t, c.Check())
	})

	t.Run("unreachable disk threshold", func(t *testing.T) {
		c := NewResourceChecker(&config.Config{ThrottleFreeDisk: 1 << 62}, t.TempDir())
		err := c.Check()
		require.Error(t, err)
		assert.Equal(t, KindOverloaded, KindOf(err))
		assert.Contains(t, DetailOf(err), "not enough free disk space")
	})

	t.Run("unreachable memory threshold", func(t *testing.T) {
		c := NewResourceChecker(&config.Config{ThrottleFreeMem: 1 << 62}, t.TempDir())
		err := c.Check()
		require.Error(t, err)
		assert.Equal(t, KindOverloaded, KindOf(err))
	})
}
