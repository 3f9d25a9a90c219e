package strata_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/strata-go/strata/pkg/strata"
)

type benchUser struct {
	ID    int
	Name  string
	Email string
	Age   int
}

func newBenchCache(b *testing.B) strata.Cache {
	b.Helper()
	cfg := strata.TestConfig()
	cfg.Local.MaxEntries = 100000
	cfg.Local.MaxSizeMB = 64
	c, err := strata.NewFromConfig(cfg)
	if err != nil {
		b.Fatalf("NewFromConfig failed: %v", err)
	}
	b.Cleanup(func() { _ = c.Close() })
	return c
}

func BenchmarkCacheSet(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	user := benchUser{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Set(ctx, "bench:user", user); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	user := benchUser{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30}
	if err := c.Set(ctx, "bench:user", user); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var got benchUser
		if err := c.Get(ctx, "bench:user", &got); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheGetParallel(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	user := benchUser{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30}
	if err := c.Set(ctx, "bench:user", user); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var got benchUser
			if err := c.Get(ctx, "bench:user", &got); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkCacheGetOrSet(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	factory := func(ctx context.Context) (any, error) {
		return benchUser{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30}, nil
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var got benchUser
		if err := c.GetOrSet(ctx, "bench:user", &got, factory); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheGetOrSetParallel(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	factory := func(ctx context.Context) (any, error) {
		return benchUser{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30}, nil
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var got benchUser
			if err := c.GetOrSet(ctx, "bench:user", &got, factory); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkCachePayloadSizes(b *testing.B) {
	sizes := []struct {
		name string
		size int
	}{
		{"1KB", 1 << 10},
		{"16KB", 16 << 10},
		{"256KB", 256 << 10},
	}

	for _, tc := range sizes {
		b.Run(tc.name, func(b *testing.B) {
			c := newBenchCache(b)
			ctx := context.Background()
			payload := strings.Repeat("x", tc.size)

			b.ReportAllocs()
			b.SetBytes(int64(tc.size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := fmt.Sprintf("bench:payload:%d", i%100)
				if err := c.Set(ctx, key, payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
