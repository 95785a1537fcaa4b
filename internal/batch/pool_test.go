package batch

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
)

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool[int, int](4, 10)
	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	pool.Start(func(n int) int { return n * n })
	for i := 1; i <= 10; i++ {
		pool.Submit(i)
	}
	pool.Close()

	var got []int
	for r := range pool.Results() {
		got = append(got, r)
	}
	sort.Ints(got)
	want := []int{1, 4, 9, 16, 25, 36, 49, 64, 81, 100}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewWorkerPoolSizing(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		jobs    int
		want    int
	}{
		{"capped by jobs", 8, 3, 3},
		{"explicit", 2, 10, 2},
		{"default", 0, 0, maxWorkers},
		{"negative uses default", -1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewWorkerPool[int, int](tt.workers, tt.jobs).Workers(); got != tt.want {
				t.Errorf("Workers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMapPreservesOrder(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	got, err := Map(context.Background(), 3, items, func(_ context.Context, s string) int {
		return len(s)
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	for i, n := range got {
		if n != i+1 {
			t.Errorf("got[%d] = %d, want %d", i, n, i+1)
		}
	}
}

func TestMapEmpty(t *testing.T) {
	got, err := Map(context.Background(), 2, nil, func(context.Context, int) int { return 1 })
	if err != nil || len(got) != 0 {
		t.Errorf("Map(nil) = %v, %v", got, err)
	}
}

func TestMapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	got, err := Map(ctx, 2, []int{1, 2, 3}, func(context.Context, int) int {
		calls.Add(1)
		return 1
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Map() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancellation", calls.Load())
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("got[%d] = %d, want zero value", i, v)
		}
	}
}
