package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStore はテスト用のインメモリStore実装。
// getErr/setErrを設定するとバックエンド障害を模擬できる。
type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error

	getCalls int
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	b, ok := s.data[key]
	return b, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

// TestGetOrCompute_MissComputesAndCaches はミス時にcomputeが実行され、
// 結果がキャッシュへ保存されることを検証する。
func TestGetOrCompute_MissComputesAndCaches(t *testing.T) {
	store := newFakeStore()
	c := New(store, nil, nil)

	computeCalls := 0
	got, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		computeCalls++
		return "value-1", nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute returned error: %v", err)
	}
	if got != "value-1" {
		t.Errorf("got %q, want %q", got, "value-1")
	}
	if computeCalls != 1 {
		t.Errorf("computeCalls = %d, want 1", computeCalls)
	}

	// 非同期書き込みの完了を待つ
	c.Flush()
	if store.setCalls != 1 {
		t.Errorf("setCalls = %d, want 1", store.setCalls)
	}
}

// TestGetOrCompute_HitSkipsCompute はTTL内の2回目の呼び出しで
// computeが再実行されず、最初の計算結果が返ることを検証する。
func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	store := newFakeStore()
	c := New(store, nil, nil)
	ctx := context.Background()

	// computeは呼び出しごとに異なる値を返す
	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "second", nil
	}

	got1, err := GetOrCompute(ctx, c, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	c.Flush()

	got2, err := GetOrCompute(ctx, c, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("second call returned error: %v", err)
	}

	if got1 != "first" || got2 != "first" {
		t.Errorf("got1 = %q, got2 = %q, want both %q（ヒット時は最初の計算値が返る）", got1, got2, "first")
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}
}

// TestGetOrCompute_BackendErrorFailsOpen はGet失敗がミスとして扱われ、
// computeの結果がエラーなしで返ることを検証する。
func TestGetOrCompute_BackendErrorFailsOpen(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := New(store, nil, nil)

	got, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected fail-open, got error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	c.Flush()
}

// TestGetOrCompute_ComputeErrorPropagates はcompute自体のエラーが
// そのまま呼び出し元へ返ることを検証する。キャッシュバックエンドも
// 同時に失敗している二重障害でもpanicせず、computeのエラーのみが返る。
func TestGetOrCompute_ComputeErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("backend down")
	c := New(store, nil, nil)

	wantErr := errors.New("compute failed")
	_, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}

	// computeエラー時はキャッシュへ書き込まない
	c.Flush()
	if store.setCalls != 0 {
		t.Errorf("setCalls = %d, want 0", store.setCalls)
	}
}

// TestGetOrCompute_NilStoreDegradesToDirectCall はバックエンド未構成時に
// computeの直接実行へ縮退することを検証する。
func TestGetOrCompute_NilStoreDegradesToDirectCall(t *testing.T) {
	c := New(nil, nil, nil)

	calls := 0
	for i := 0; i < 3; i++ {
		got, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
			calls++
			return "direct", nil
		})
		if err != nil {
			t.Fatalf("GetOrCompute returned error: %v", err)
		}
		if got != "direct" {
			t.Errorf("got %q, want %q", got, "direct")
		}
	}

	// キャッシュがないため毎回computeが実行される
	if calls != 3 {
		t.Errorf("compute calls = %d, want 3", calls)
	}
}

// TestGetOrCompute_StructValue は構造体のシリアライズ往復を検証する。
func TestGetOrCompute_StructValue(t *testing.T) {
	type result struct {
		IDs   []string `json:"ids"`
		Total int      `json:"total"`
	}

	store := newFakeStore()
	c := New(store, nil, nil)
	ctx := context.Background()

	want := result{IDs: []string{"a-1", "a-2"}, Total: 12}
	got1, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (result, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	c.Flush()

	got2, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (result, error) {
		t.Error("compute should not run on cache hit")
		return result{}, nil
	})
	if err != nil {
		t.Fatalf("second call returned error: %v", err)
	}

	if got1.Total != want.Total || got2.Total != want.Total {
		t.Errorf("Total = %d/%d, want %d", got1.Total, got2.Total, want.Total)
	}
	if len(got2.IDs) != 2 || got2.IDs[0] != "a-1" {
		t.Errorf("IDs = %v, want %v", got2.IDs, want.IDs)
	}
}

// TestRedisStore_ImplementsStore はRedisStoreがStoreを実装することを検証する。
func TestRedisStore_ImplementsStore(t *testing.T) {
	// コンパイル時チェック
	var _ Store = (*RedisStore)(nil)
}
