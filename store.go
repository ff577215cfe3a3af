package tzbaker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// StoreVersion is the layout version written into every persisted record.
const StoreVersion = 1

var (
	ErrStoreCorrupted = errors.New("tzbaker: store corrupted")
	ErrStorePersist   = errors.New("tzbaker: failed to persist")
)

// HighWatermark is the highest (level, round) signed on a chain.
type HighWatermark struct {
	HighestLevel   uint32 `cbor:"1,keyasint"`
	HighestRound   uint32 `cbor:"2,keyasint"`
	HadAttestation bool   `cbor:"3,keyasint"`
}

// Watermarks holds one record per chain context.
type Watermarks struct {
	Main HighWatermark `cbor:"1,keyasint"`
	Test HighWatermark `cbor:"2,keyasint"`
}

// Nvram is the persisted security state of the device.
type Nvram struct {
	Version     int           `cbor:"0,keyasint"`
	BakingKey   PathWithCurve `cbor:"1,keyasint"`
	MainChainID ChainID       `cbor:"2,keyasint"`
	HWM         Watermarks    `cbor:"3,keyasint"`
}

func (n Nvram) clone() Nvram {
	n.BakingKey = n.BakingKey.Clone()
	return n
}

// Store persists the security state. Save must either fully replace the
// previous record or leave it untouched.
type Store interface {
	Load() (Nvram, error)
	Save(Nvram) error
}

// MemoryStore keeps the state in memory. Useful for tests.
type MemoryStore struct {
	data  Nvram
	Saves int
	Fail  error
}

func (m *MemoryStore) Load() (Nvram, error) {
	return m.data.clone(), nil
}

func (m *MemoryStore) Save(n Nvram) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.data = n.clone()
	m.Saves++
	return nil
}

// FileStore persists the state as CBOR, replacing the file atomically.
type FileStore struct {
	path string
	enc  cbor.EncMode
	dec  cbor.DecMode
}

// NewFileStore opens a store at path. The directory is created with 0700
// permissions if needed; a missing file reads as the zero state.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	dec, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		return nil, err
	}

	return &FileStore{path: path, enc: enc, dec: dec}, nil
}

func (s *FileStore) Load() (Nvram, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return Nvram{Version: StoreVersion}, nil
	}
	if err != nil {
		return Nvram{}, fmt.Errorf("read file: %w", err)
	}

	var n Nvram
	if err := s.dec.Unmarshal(data, &n); err != nil {
		return Nvram{}, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}

	if n.Version > StoreVersion {
		return Nvram{}, fmt.Errorf("%w: unsupported version %d", ErrStoreCorrupted, n.Version)
	}

	return n, nil
}

// Save writes to a temporary file, syncs it and renames it over the
// previous record.
func (s *FileStore) Save(n Nvram) error {
	n.Version = StoreVersion

	data, err := s.enc.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".nvram-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	return nil
}
