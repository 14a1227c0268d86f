package queuestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/queue"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Store implements queue.Store and snapshot/restore of queue contents.
type Store struct {
	db     *pebblestore.DB
	codec  *codec.Codec
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger logpkg.Logger
}

// New returns a store over db. Close releases the compressor state.
func New(db *pebblestore.DB, logger logpkg.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Store{
		db:     db,
		codec:  message.Codec(),
		enc:    enc,
		dec:    dec,
		logger: logger.WithComponent("queuestore"),
	}, nil
}

// Close releases compressor resources. The db is owned by the caller.
func (s *Store) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

// SaveDefinition implements queue.Store.
func (s *Store) SaveDefinition(def queue.Definition) error {
	b, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return s.db.Set(defKey(def.Name), b)
}

// DeleteDefinition implements queue.Store. Stored contents go with it.
func (s *Store) DeleteDefinition(name string) error {
	if err := s.db.Delete(defKey(name)); err != nil {
		return err
	}
	return s.db.DeletePrefix(context.Background(), msgQueuePrefix(name))
}

// Definitions returns every stored definition in name order.
func (s *Store) Definitions(ctx context.Context) ([]queue.Definition, error) {
	var out []queue.Definition
	err := s.db.Scan(ctx, defPrefix, func(k, v []byte) error {
		var def queue.Definition
		if err := json.Unmarshal(v, &def); err != nil {
			s.logger.Warn("skipping unreadable definition", logpkg.Str("key", string(k)), logpkg.Err(err))
			return nil
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// SaveMessages replaces the stored contents of name with msgs.
func (s *Store) SaveMessages(ctx context.Context, name string, msgs []*message.Message) error {
	b := s.db.NewBatch()
	defer b.Close()
	prefix := msgQueuePrefix(name)
	if err := b.DeleteRange(prefix, pebblestore.PrefixEnd(prefix), nil); err != nil {
		return err
	}
	for i, m := range msgs {
		frame, err := s.codec.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode %s: %w", m, err)
		}
		val := encodeRecord(recordHeader{Version: recordVersion, Flags: flagZstd}, s.enc.EncodeAll(frame, nil))
		if err := b.Set(msgKey(name, uint64(i)), val, nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// LoadMessages returns the stored contents of name in service order.
// Records that fail their checksum or decode are skipped and logged.
func (s *Store) LoadMessages(ctx context.Context, name string) ([]*message.Message, error) {
	var out []*message.Message
	err := s.db.Scan(ctx, msgQueuePrefix(name), func(k, v []byte) error {
		m, err := s.decodeMessage(v)
		if err != nil {
			s.logger.Warn("skipping corrupt message record",
				logpkg.Str("queue", name), logpkg.Str("key", fmt.Sprintf("%x", k)), logpkg.Err(err))
			return nil
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (s *Store) decodeMessage(v []byte) (*message.Message, error) {
	h, payload, err := decodeRecord(v)
	if err != nil {
		return nil, err
	}
	if h.Flags&flagZstd != 0 {
		if payload, err = s.dec.DecodeAll(payload, nil); err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
	}
	rec, err := s.codec.Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	m, ok := rec.(*message.Message)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected record %T", errBadRecord, rec)
	}
	return m, nil
}

// Snapshot writes the contents of every permanent queue in reg.
func (s *Store) Snapshot(ctx context.Context, reg *queue.Registry) (int, error) {
	total := 0
	for _, q := range reg.Queues() {
		if q.Definition().Disposition != queue.Permanent {
			continue
		}
		msgs := q.Snapshot()
		if err := s.SaveMessages(ctx, q.Name(), msgs); err != nil {
			return total, fmt.Errorf("snapshot %s: %w", q.Name(), err)
		}
		total += len(msgs)
	}
	s.logger.Info("queues persisted", logpkg.Int("messages", total))
	return total, nil
}

// Restore defines every stored queue in reg and loads its contents.
func (s *Store) Restore(ctx context.Context, reg *queue.Registry) (int, error) {
	defs, err := s.Definitions(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, def := range defs {
		msgs, err := s.LoadMessages(ctx, def.Name)
		if err != nil {
			return total, fmt.Errorf("restore %s: %w", def.Name, err)
		}
		if _, err := reg.Restore(def, msgs); err != nil {
			return total, err
		}
		total += len(msgs)
	}
	s.logger.Info("queues restored", logpkg.Int("queues", len(defs)), logpkg.Int("messages", total))
	return total, nil
}
