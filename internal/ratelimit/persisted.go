package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces one Redis key per limiter record.
	DefaultKeyPrefix = "club:ratelimit:attempt:"
	// DefaultIdleTTL expires a Redis record this long after its last write.
	// It must exceed the longest policy window.
	DefaultIdleTTL = 24 * time.Hour

	writeQueueSize = 1024
)

// Persister keeps attempt records outside the process. Writes touch only the
// record they name, so several stores can share one Persister without
// overwriting each other's keys.
type Persister interface {
	LoadAll(ctx context.Context) (map[string]AttemptRecord, error)
	Put(ctx context.Context, key string, rec AttemptRecord) error
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context) error
}

type writeOp struct {
	key string
	rec *AttemptRecord // nil removes key
	all bool
}

// PersistedStore answers from memory and mirrors every mutation to a
// Persister from a background goroutine, in order. Persister failures are
// logged and never surface to the caller. Close flushes pending writes.
type PersistedStore struct {
	mem          *MemoryStore
	persister    Persister
	logger       *zap.Logger
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	ops    chan writeOp
	done   chan struct{}
}

// NewPersistedStore loads the persisted records once. A corrupt or
// unreachable backing starts the store empty.
func NewPersistedStore(ctx context.Context, p Persister, logger *zap.Logger) *PersistedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PersistedStore{
		mem:          NewMemoryStore(),
		persister:    p,
		logger:       logger,
		writeTimeout: 2 * time.Second,
		ops:          make(chan writeOp, writeQueueSize),
		done:         make(chan struct{}),
	}
	records, err := p.LoadAll(ctx)
	if err != nil {
		logger.Warn("ratelimit: load persisted state", zap.Error(err))
	}
	for k, rec := range records {
		s.mem.Set(k, rec)
	}
	go s.run()
	return s
}

// Get reads from memory.
func (s *PersistedStore) Get(key string) (AttemptRecord, bool) {
	return s.mem.Get(key)
}

// Set stores rec and queues its write.
func (s *PersistedStore) Set(key string, rec AttemptRecord) {
	s.mem.Set(key, rec)
	s.enqueue(writeOp{key: key, rec: &rec})
}

// Delete forgets key and queues its removal.
func (s *PersistedStore) Delete(key string) {
	s.mem.Delete(key)
	s.enqueue(writeOp{key: key})
}

// Clear forgets every key and queues removal of all persisted records.
func (s *PersistedStore) Clear() {
	s.mem.Clear()
	s.enqueue(writeOp{all: true})
}

// Close waits for queued writes and stops the writer. Later mutations stay in memory only.
func (s *PersistedStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *PersistedStore) enqueue(op writeOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ops <- op:
	default:
		s.logger.Warn("ratelimit: write queue full, dropping update", zap.String("key", op.key))
	}
}

func (s *PersistedStore) run() {
	defer close(s.done)
	for op := range s.ops {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		var err error
		switch {
		case op.all:
			err = s.persister.RemoveAll(ctx)
		case op.rec == nil:
			err = s.persister.Remove(ctx, op.key)
		default:
			err = s.persister.Put(ctx, op.key, *op.rec)
		}
		cancel()
		if err != nil {
			s.logger.Error("ratelimit: persist state", zap.String("key", op.key), zap.Error(err))
		}
	}
}

// fileMu serialises read-modify-write cycles on FileBlob paths within a process.
var fileMu sync.Mutex

// FileBlob stores every record in one JSON file. Each write re-reads the file
// and changes only its own key; the file is replaced atomically.
type FileBlob struct {
	Path string
}

// LoadAll reads the file; a missing file is empty.
func (b FileBlob) LoadAll(_ context.Context) (map[string]AttemptRecord, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return b.read()
}

// Put merges rec into the file.
func (b FileBlob) Put(_ context.Context, key string, rec AttemptRecord) error {
	return b.update(func(m map[string]AttemptRecord) { m[key] = rec })
}

// Remove deletes key from the file.
func (b FileBlob) Remove(_ context.Context, key string) error {
	return b.update(func(m map[string]AttemptRecord) { delete(m, key) })
}

// RemoveAll empties the file.
func (b FileBlob) RemoveAll(_ context.Context) error {
	return b.update(func(m map[string]AttemptRecord) { clear(m) })
}

func (b FileBlob) update(fn func(map[string]AttemptRecord)) error {
	fileMu.Lock()
	defer fileMu.Unlock()
	records, err := b.read()
	if err != nil {
		// unreadable content is replaced rather than blocking every write
		records = nil
	}
	if records == nil {
		records = make(map[string]AttemptRecord)
	}
	fn(records)
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.Path, err)
	}
	return b.write(data)
}

func (b FileBlob) read() (map[string]AttemptRecord, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.Path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records map[string]AttemptRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.Path, err)
	}
	return records, nil
}

func (b FileBlob) write(data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// RedisBlob stores each record as JSON under its own namespaced key. Keys
// expire IdleTTL after their last write, or when their block ends if later.
type RedisBlob struct {
	Client  redis.Cmdable
	Prefix  string
	IdleTTL time.Duration
}

func (b RedisBlob) prefix() string {
	if b.Prefix == "" {
		return DefaultKeyPrefix
	}
	return b.Prefix
}

func (b RedisBlob) ttl(rec AttemptRecord) time.Duration {
	ttl := b.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if rec.BlockedUntil != nil {
		if d := time.Until(*rec.BlockedUntil); d > ttl {
			ttl = d
		}
	}
	return ttl
}

// LoadAll scans the prefix and decodes every record. Undecodable values are skipped.
func (b RedisBlob) LoadAll(ctx context.Context) (map[string]AttemptRecord, error) {
	records := make(map[string]AttemptRecord)
	err := b.scan(ctx, func(keys []string) error {
		values, err := b.Client.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var rec AttemptRecord
			if json.Unmarshal([]byte(s), &rec) != nil {
				continue
			}
			records[strings.TrimPrefix(keys[i], b.prefix())] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Put writes one record with its expiry.
func (b RedisBlob) Put(ctx context.Context, key string, rec AttemptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := b.Client.Set(ctx, b.prefix()+key, data, b.ttl(rec)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b.prefix()+key, err)
	}
	return nil
}

// Remove deletes one record.
func (b RedisBlob) Remove(ctx context.Context, key string) error {
	if err := b.Client.Del(ctx, b.prefix()+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", b.prefix()+key, err)
	}
	return nil
}

// RemoveAll deletes every record under the prefix.
func (b RedisBlob) RemoveAll(ctx context.Context) error {
	return b.scan(ctx, func(keys []string) error {
		if err := b.Client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	})
}

func (b RedisBlob) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := b.Client.Scan(ctx, cursor, b.prefix()+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", b.prefix(), err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
