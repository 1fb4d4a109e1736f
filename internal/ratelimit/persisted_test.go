package ratelimit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartystreets/goconvey/convey"
)

type failingPersister struct {
	mu     sync.Mutex
	writes int
}

func (p *failingPersister) LoadAll(context.Context) (map[string]AttemptRecord, error) {
	return nil, errors.New("unreachable")
}

func (p *failingPersister) Put(context.Context, string, AttemptRecord) error { return p.fail() }
func (p *failingPersister) Remove(context.Context, string) error             { return p.fail() }
func (p *failingPersister) RemoveAll(context.Context) error                  { return p.fail() }

func (p *failingPersister) fail() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	return errors.New("disk full")
}

// blockingPersister holds every write until release is closed.
type blockingPersister struct {
	release chan struct{}
}

func (p *blockingPersister) LoadAll(context.Context) (map[string]AttemptRecord, error) {
	return nil, nil
}

func (p *blockingPersister) Put(context.Context, string, AttemptRecord) error {
	<-p.release
	return nil
}
func (p *blockingPersister) Remove(context.Context, string) error { <-p.release; return nil }
func (p *blockingPersister) RemoveAll(context.Context) error      { <-p.release; return nil }

func TestPersistedStore(t *testing.T) {
	convey.Convey("Given a file-backed persisted store", t, func() {
		path := filepath.Join(t.TempDir(), "state", "attempts.json")
		ctx := context.Background()
		store := NewPersistedStore(ctx, FileBlob{Path: path}, nil)
		l, clock := newTestLimiter(store)

		convey.Convey("When attempts are recorded", func() {
			for i := 0; i <= PresetAttendance.MaxAttempts; i++ {
				l.Check("ip|token", PresetAttendance)
			}
			convey.So(store.Close(), convey.ShouldBeNil)

			convey.Convey("Then the state is written to disk", func() {
				_, err := os.Stat(path)
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("Then a new store over the same file sees the block", func() {
				reloaded, _ := newTestLimiter(NewPersistedStore(ctx, FileBlob{Path: path}, nil))
				reloaded.now = clock.Now
				d := reloaded.Check("ip|token", PresetAttendance)
				convey.So(d.Allowed, convey.ShouldBeFalse)
				convey.So(reloaded.AttemptCount("ip|token"), convey.ShouldEqual, PresetAttendance.MaxAttempts+1)
			})

			convey.Convey("Then ClearAll removes the persisted records", func() {
				again := NewPersistedStore(ctx, FileBlob{Path: path}, nil)
				New(again).ClearAll()
				convey.So(again.Close(), convey.ShouldBeNil)

				reloaded := NewPersistedStore(ctx, FileBlob{Path: path}, nil)
				_, ok := reloaded.Get("ip|token")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given two stores sharing one file", t, func() {
		path := filepath.Join(t.TempDir(), "attempts.json")
		ctx := context.Background()
		first := NewPersistedStore(ctx, FileBlob{Path: path}, nil)
		second := NewPersistedStore(ctx, FileBlob{Path: path}, nil)
		a, clock := newTestLimiter(first)
		b, _ := newTestLimiter(second)
		b.now = clock.Now

		for i := 0; i <= PresetLogin.MaxAttempts; i++ {
			a.Check("admin@club.test", PresetLogin)
		}
		convey.So(first.Close(), convey.ShouldBeNil)
		b.Check("other@club.test", PresetLogin)
		convey.So(second.Close(), convey.ShouldBeNil)

		convey.Convey("A later write by one store keeps the other's block", func() {
			reloaded, _ := newTestLimiter(NewPersistedStore(ctx, FileBlob{Path: path}, nil))
			reloaded.now = clock.Now
			convey.So(reloaded.Check("admin@club.test", PresetLogin).Allowed, convey.ShouldBeFalse)
			convey.So(reloaded.AttemptCount("other@club.test"), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given a corrupt file", t, func() {
		path := filepath.Join(t.TempDir(), "attempts.json")
		convey.So(os.WriteFile(path, []byte("{not json"), 0o600), convey.ShouldBeNil)

		convey.Convey("The store starts empty", func() {
			store := NewPersistedStore(context.Background(), FileBlob{Path: path}, nil)
			_, ok := store.Get("x")
			convey.So(ok, convey.ShouldBeFalse)

			convey.Convey("And the next write replaces the corrupt content", func() {
				New(store).Check("x", PresetSite)
				convey.So(store.Close(), convey.ShouldBeNil)
				records, err := FileBlob{Path: path}.LoadAll(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(records, convey.ShouldContainKey, "x")
			})
		})
	})

	convey.Convey("Given a backing that cannot be read or written", t, func() {
		p := &failingPersister{}
		store := NewPersistedStore(context.Background(), p, nil)
		l, _ := newTestLimiter(store)

		convey.Convey("The limiter still decides correctly from memory", func() {
			for i := 0; i < PresetLogin.MaxAttempts; i++ {
				convey.So(l.Check("admin@club.test", PresetLogin).Allowed, convey.ShouldBeTrue)
			}
			convey.So(l.Check("admin@club.test", PresetLogin).Allowed, convey.ShouldBeFalse)
			convey.So(store.Close(), convey.ShouldBeNil)
			convey.So(p.writes, convey.ShouldEqual, PresetLogin.MaxAttempts+1)
		})
	})

	convey.Convey("Given a backing that stalls", t, func() {
		p := &blockingPersister{release: make(chan struct{})}
		store := NewPersistedStore(context.Background(), p, nil)
		l, _ := newTestLimiter(store)

		convey.Convey("Checks return without waiting for the write", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 3; i++ {
					l.Check("ip:1", PresetSite)
				}
				close(done)
			}()
			returned := false
			select {
			case <-done:
				returned = true
			case <-time.After(time.Second):
			}
			close(p.release)
			convey.So(returned, convey.ShouldBeTrue)
			convey.So(l.AttemptCount("ip:1"), convey.ShouldEqual, 3)
			convey.So(store.Close(), convey.ShouldBeNil)
		})
	})
}

func TestRedisBlob(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	convey.Convey("Given Redis-backed persisted stores", t, func() {
		blob := RedisBlob{Client: client, Prefix: "test:ratelimit:" + time.Now().Format(time.RFC3339Nano) + ":"}
		defer blob.RemoveAll(ctx)

		convey.Convey("An empty prefix loads empty", func() {
			records, err := blob.LoadAll(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(records, convey.ShouldBeEmpty)
		})

		convey.Convey("Recorded attempts survive a reload", func() {
			store := NewPersistedStore(ctx, blob, nil)
			l, _ := newTestLimiter(store)
			l.Check("k", PresetLogin)
			l.Check("k", PresetLogin)
			convey.So(store.Close(), convey.ShouldBeNil)

			reloaded := New(NewPersistedStore(ctx, blob, nil))
			convey.So(reloaded.AttemptCount("k"), convey.ShouldEqual, 2)
		})

		convey.Convey("Two stores write their own keys", func() {
			first := NewPersistedStore(ctx, blob, nil)
			second := NewPersistedStore(ctx, blob, nil)
			a, clock := newTestLimiter(first)
			b, _ := newTestLimiter(second)
			b.now = clock.Now
			for i := 0; i <= PresetLogin.MaxAttempts; i++ {
				a.Check("admin@club.test", PresetLogin)
			}
			b.Check("other@club.test", PresetLogin)
			convey.So(first.Close(), convey.ShouldBeNil)
			convey.So(second.Close(), convey.ShouldBeNil)

			reloaded, _ := newTestLimiter(NewPersistedStore(ctx, blob, nil))
			reloaded.now = clock.Now
			convey.So(reloaded.Check("admin@club.test", PresetLogin).Allowed, convey.ShouldBeFalse)
			convey.So(reloaded.AttemptCount("other@club.test"), convey.ShouldEqual, 1)

			ttl, err := client.PTTL(ctx, blob.prefix()+"admin@club.test").Result()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ttl, convey.ShouldBeGreaterThan, 0)
		})
	})
}
