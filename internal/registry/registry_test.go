package registry

import (
	"path/filepath"
	"testing"

	"github.com/Anthya1104/stripefec/internal/checksummap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupOrInsertSharesSameMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sums.map")
	reg := New()

	m1, err := reg.LookupOrInsert(path, 0, 64, true)
	require.NoError(t, err)
	m2, err := reg.LookupOrInsert(path, 0, 64, true)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, reg.Len())
}

func TestReleaseWaitsForLastReferent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sums.map")
	reg := New()

	m, err := reg.LookupOrInsert(path, 0, 64, true)
	require.NoError(t, err)
	m.RefInc(checksummap.RefWrite)
	m.RefInc(checksummap.RefRead)

	require.NoError(t, reg.Release(path))
	assert.Equal(t, 1, reg.Len(), "map must remain registered while referents exist")

	m.RefDec(checksummap.RefWrite)
	require.NoError(t, reg.Release(path))
	assert.Equal(t, 1, reg.Len(), "one referent still outstanding")

	m.RefDec(checksummap.RefRead)
	require.NoError(t, reg.Release(path))
	assert.Equal(t, 0, reg.Len())
}

func TestReleaseUnknownPathIsNoop(t *testing.T) {
	reg := New()
	assert.NoError(t, reg.Release("/nonexistent"))
}
