package memfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/crypto"
	"github.com/sandevgo/mnemo/pkg/log"
)

// Store is the durable record log: one JSON file, encrypted at rest when
// a codec is configured, rewritten whole on every mutation. Writes go
// through a temp file and an atomic rename so readers never observe a
// half-written store. Retry and backup live in the recovery coordinator,
// not here.
type Store struct {
	path  string
	codec *crypto.Codec // nil disables encryption
	comp  *Compressor

	mu sync.RWMutex
}

func New(path string, codec *crypto.Codec, comp *Compressor) *Store {
	if comp == nil {
		comp = NewCompressor(DefaultCompressionThreshold)
	}
	return &Store{path: path, codec: codec, comp: comp}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Encrypted() bool {
	return s.codec != nil
}

// Load reads the full record set. Every failure mode degrades to an
// empty set with a logged reason; the read path never aborts the caller.
func (s *Store) Load(ctx context.Context) ([]core.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) ([]core.MemoryRecord, error) {
	logger := log.FromCtx(ctx)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		logger.Error().Err(err).Str("path", s.path).Msg("failed to read record store")
		return nil, nil
	}

	variant, plain, env := decodeFile(data)

	switch variant {
	case variantPlain:
		return s.unpackAll(ctx, plain.Messages), nil

	case variantEncrypted:
		if s.codec == nil {
			logger.Warn().Str("path", s.path).Msg("store is encrypted but no key is configured, returning empty set")
			return nil, nil
		}
		raw, err := s.codec.Decrypt(env)
		if err != nil {
			logger.Error().Err(err).Str("path", s.path).Msg("record store decryption failed")
			return nil, nil
		}
		var decrypted plainFile
		if err := json.Unmarshal(raw, &decrypted); err != nil {
			logger.Error().Err(err).Str("path", s.path).Msg("decrypted store is not valid JSON")
			return nil, nil
		}
		return s.unpackAll(ctx, decrypted.Messages), nil

	default:
		logger.Error().Str("path", s.path).Msg("record store is malformed, returning empty set")
		return nil, nil
	}
}

func (s *Store) unpackAll(ctx context.Context, stored []storedRecord) []core.MemoryRecord {
	logger := log.FromCtx(ctx)
	records := make([]core.MemoryRecord, 0, len(stored))
	for _, sr := range stored {
		rec, err := s.comp.Unpack(sr)
		if err != nil {
			logger.Warn().Err(err).Str("id", sr.ID).Msg("skipping record with unreadable payload")
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Append rewrites the entire store with the new record added. Every
// append is O(store size); batch writes where throughput matters.
func (s *Store) Append(ctx context.Context, record core.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.write(ctx, records)
}

// Rewrite replaces the full record set, used by storage optimization.
func (s *Store) Rewrite(ctx context.Context, records []core.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, records)
}

func (s *Store) write(ctx context.Context, records []core.MemoryRecord) error {
	stored := make([]storedRecord, 0, len(records))
	for _, rec := range records {
		sr, err := s.comp.Pack(rec)
		if err != nil {
			return fmt.Errorf("pack record %s: %w", rec.ID, err)
		}
		stored = append(stored, sr)
	}

	raw, err := json.Marshal(plainFile{Messages: stored})
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if s.codec != nil {
		env, err := s.codec.Encrypt(raw)
		if err != nil {
			return fmt.Errorf("encrypt store: %w", err)
		}
		raw, err = json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".memory-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	log.FromCtx(ctx).Debug().Int("records", len(records)).Bool("encrypted", s.codec != nil).Msg("record store written")
	return nil
}

// CompressionStats exposes the payload compressor counters.
func (s *Store) CompressionStats() CompressionStats {
	return s.comp.Stats()
}
