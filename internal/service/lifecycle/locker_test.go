package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "r1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("expected exclusive access, peak=%d", peak)
	}
	if k.size() != 0 {
		t.Fatalf("expected no leftover keys, got %d", k.size())
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("lock r1: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	other, err := k.Lock(ctx, "r2")
	if err != nil {
		t.Fatalf("lock r2 must not wait: %v", err)
	}
	other()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "r1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	unlock()
	unlock()
	if k.size() != 0 {
		t.Fatalf("expected clean state, got %d keys", k.size())
	}
}

// fakeRedis эмулирует SET NX и скрипт освобождения.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	setErr  error
	evalCnt int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) release(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalCnt++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func (f *fakeRedis) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func TestRedisLocker_LockAndRelease(t *testing.T) {
	client := newFakeRedis()
	l := NewRedisLocker(client, "", time.Second, 5*time.Millisecond, nil)

	unlock, err := l.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !client.held("shelter:request-lock:r1") {
		t.Fatalf("expected key with default prefix")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "r1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second lock must wait for the owner, got %v", err)
	}

	unlock()
	if client.held("shelter:request-lock:r1") {
		t.Fatalf("key must be released")
	}

	again, err := l.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedisLocker_DoesNotReleaseForeignToken(t *testing.T) {
	client := newFakeRedis()
	l := NewRedisLocker(client, "test:", time.Second, time.Millisecond, nil)

	unlock, err := l.Lock(context.Background(), "r1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// ключ истёк и был захвачен другим экземпляром
	client.mu.Lock()
	client.values["test:r1"] = "foreign"
	client.mu.Unlock()

	unlock()
	if !client.held("test:r1") {
		t.Fatalf("foreign lock must survive")
	}
	if client.evalCnt == 0 {
		t.Fatalf("release script must be executed")
	}
}

func TestRedisLocker_SetError(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	l := NewRedisLocker(client, "", 0, 0, nil)

	if _, err := l.Lock(context.Background(), "r1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestManager_WithRedisLocker(t *testing.T) {
	f := newFixture(t)
	client := newFakeRedis()
	m := f.manager(WithLocker(NewRedisLocker(client, "", time.Second, time.Millisecond, quietLogger())))
	req := submit(t, m, "req-user-1", "P1", "A1")

	if _, err := m.Accept(context.Background(), req.ID, "admin"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if client.held("shelter:request-lock:" + req.ID) {
		t.Fatalf("lock must be released after the transition")
	}
}
