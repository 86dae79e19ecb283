// Package archive keeps every forecast result in an embedded badger database,
// zstd-compressed, so the last-known-good forecast of a gauge survives failed
// runs and restarts.
package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/marweda/water-level-forecast/internal/domain"
)

// ErrExists is returned when a run is stored twice.
var ErrExists = errors.New("forecast run already archived")

// Store is a write-once forecast archive.
type Store struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *slog.Logger
}

// Open opens (or creates) the archive under dir. An empty dir opens an
// in-memory archive.
func Open(dir string, compressionLevel int, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "forecasts"))
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel(compressionLevel)))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	return &Store{db: db, encoder: encoder, decoder: decoder, logger: logger}, nil
}

func encoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Name identifies the sink in metrics and logs.
func (s *Store) Name() string { return "archive" }

// LoadForecast archives res. It implements pipeline.Sink.
func (s *Store) LoadForecast(_ context.Context, res domain.ForecastResult) error {
	return s.Put(res)
}

// LoadSeries is a no-op; the archive holds forecasts only.
func (s *Store) LoadSeries(context.Context, domain.TimeSeries) error { return nil }

// Put stores res under a key ordered by generation time. Storing the same
// run twice returns ErrExists and leaves the first copy untouched.
func (s *Store) Put(res domain.ForecastResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("serialize forecast: %w", err)
	}
	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	key := runKey(res)

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return ErrExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, compressed)
	})
	if err != nil {
		return fmt.Errorf("archive forecast %s: %w", res.RunID, err)
	}
	s.logger.Debug("forecast archived", "entity_id", res.EntityID, "run_id", res.RunID,
		"bytes", len(compressed), "raw_bytes", len(data))
	return nil
}

// Latest returns the most recently generated forecast of a gauge.
func (s *Store) Latest(_ context.Context, entityID string) (domain.ForecastResult, error) {
	prefix := entityPrefix(entityID)

	var compressed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seekLast(prefix))
		if !it.ValidForPrefix(prefix) {
			return domain.ErrForecastNotFound
		}
		var err error
		compressed, err = it.Item().ValueCopy(nil)
		return err
	})
	if err != nil {
		return domain.ForecastResult{}, err
	}
	return s.decode(compressed)
}

// History returns up to limit forecasts of a gauge, newest first.
func (s *Store) History(_ context.Context, entityID string, limit int) ([]domain.ForecastResult, error) {
	prefix := entityPrefix(entityID)

	var blobs [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(blobs) == limit {
				break
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			blobs = append(blobs, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ForecastResult, 0, len(blobs))
	for _, b := range blobs {
		res, err := s.decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Store) decode(compressed []byte) (domain.ForecastResult, error) {
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("decompress forecast: %w", err)
	}
	var res domain.ForecastResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.ForecastResult{}, fmt.Errorf("decode forecast: %w", err)
	}
	return res, nil
}

// Close releases the database and codec resources.
func (s *Store) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// entityPrefix is "f/<entity>/". Entity IDs never contain a slash.
func entityPrefix(entityID string) []byte {
	return []byte("f/" + entityID + "/")
}

// seekLast sorts after every key under prefix. Reverse iteration starts at
// the greatest key not above it.
func seekLast(prefix []byte) []byte {
	return append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, 9)...)
}

// runKey is the entity prefix, the big-endian generation time in nanoseconds
// and the run id, so byte order is generation order.
func runKey(res domain.ForecastResult) []byte {
	key := entityPrefix(res.EntityID)
	key = binary.BigEndian.AppendUint64(key, uint64(res.GeneratedAt.UnixNano()))
	key = append(key, '/')
	return append(key, res.RunID...)
}
