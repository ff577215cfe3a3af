package tzbaker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsZeroState(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "nvram.cbor"))
	require.NoError(t, err)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StoreVersion, state.Version)
	assert.False(t, state.BakingKey.IsSet())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.cbor")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	want := Nvram{
		Version:     StoreVersion,
		BakingKey:   PathWithCurve{Curve: CurveSecp256r1, Path: Path{Hardened | 44, Hardened | 1729, 3}},
		MainChainID: mainnet,
		HWM: Watermarks{
			Main: HighWatermark{HighestLevel: 5_000_000, HighestRound: 2, HadAttestation: true},
			Test: HighWatermark{HighestLevel: 12},
		},
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Load()
	require.NoError(t, err)
	assert.True(t, want.BakingKey.Equal(got.BakingKey))
	assert.Equal(t, want.MainChainID, got.MainChainID)
	assert.Equal(t, want.HWM, got.HWM)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStore_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.cbor")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestFileStore_NewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.cbor")

	data, err := cbor.Marshal(Nvram{Version: StoreVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestGuard_PersistsThroughFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.cbor")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	guard, err := NewGuard(store)
	require.NoError(t, err)

	require.NoError(t, guard.Reset(100))
	require.NoError(t, guard.ValidateAndAdvance(ChainMain, 101, 0, false))

	store, err = NewFileStore(path)
	require.NoError(t, err)
	reloaded, err := NewGuard(store)
	require.NoError(t, err)

	assert.Equal(t, HighWatermark{HighestLevel: 101}, reloaded.Watermark(ChainMain))
	assert.Equal(t, HighWatermark{HighestLevel: 100}, reloaded.Watermark(ChainTest))
}
