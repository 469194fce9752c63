package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTheme_SavedAcrossLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	s := newTestStore(t, path)
	ctx := context.Background()

	v, err := s.LoadTheme(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Save(ctx, "tok"))
	require.NoError(t, s.SaveTheme(ctx, "light"))
	require.NoError(t, s.SaveTheme(ctx, "dark"))
	require.NoError(t, s.Delete(ctx))

	v, err = s.LoadTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
}
