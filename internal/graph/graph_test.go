package graph

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestResolveKeys(t *testing.T) {
	t.Run("returns explicit keys as-is", func(t *testing.T) {
		g := New()

		got := g.Resolve(Request{Keys: []string{"a", "b", "c"}})

		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("deduplicates explicit keys", func(t *testing.T) {
		g := New()

		got := g.Resolve(Request{Keys: []string{"a", "b", "a"}})

		want := []string{"a", "b"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("skips empty keys", func(t *testing.T) {
		g := New()

		got := g.Resolve(Request{Keys: []string{"", "a", ""}})

		want := []string{"a"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("empty request resolves to nothing", func(t *testing.T) {
		g := New()

		if got := g.Resolve(Request{}); len(got) != 0 {
			t.Errorf("Resolve() = %v, want empty", got)
		}
	})
}

func TestResolveTags(t *testing.T) {
	t.Run("expands a tag to its members", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})
		g.RegisterTags("user:2", []string{"users"})
		g.RegisterTags("order:9", []string{"orders"})

		got := g.Resolve(Request{Tags: []string{"users"}})

		want := []string{"user:1", "user:2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("unions tags and explicit keys without duplicates", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})
		g.RegisterTags("user:2", []string{"users", "premium"})

		got := g.Resolve(Request{
			Keys: []string{"user:2", "session:7"},
			Tags: []string{"users", "premium"},
		})

		// Explicit keys first, then tag members in registration order.
		want := []string{"user:2", "session:7", "user:1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("unknown tag resolves to nothing", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})

		if got := g.Resolve(Request{Tags: []string{"missing"}}); len(got) != 0 {
			t.Errorf("Resolve() = %v, want empty", got)
		}
	})

	t.Run("duplicate registration is a no-op", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})
		g.RegisterTags("user:1", []string{"users"})

		got := g.Resolve(Request{Tags: []string{"users"}})

		if len(got) != 1 {
			t.Errorf("Resolve() = %v, want one key", got)
		}
	})
}

func TestResolveCascade(t *testing.T) {
	t.Run("walks dependents breadth-first", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("user:1", []string{"profile:1", "feed:1"})
		g.RegisterDependencies("profile:1", []string{"avatar:1"})

		got := g.Resolve(Request{Keys: []string{"user:1"}, Cascade: true})

		want := []string{"user:1", "profile:1", "feed:1", "avatar:1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("without cascade dependents stay untouched", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("user:1", []string{"profile:1"})

		got := g.Resolve(Request{Keys: []string{"user:1"}})

		want := []string{"user:1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("diamond dependency visits each key once", func(t *testing.T) {
		g := New()
		// a -> b, a -> c, b -> d, c -> d
		g.RegisterDependencies("a", []string{"b", "c"})
		g.RegisterDependencies("b", []string{"d"})
		g.RegisterDependencies("c", []string{"d"})

		got := g.Resolve(Request{Keys: []string{"a"}, Cascade: true})

		want := []string{"a", "b", "c", "d"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("cycle terminates", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("a", []string{"b"})
		g.RegisterDependencies("b", []string{"c"})
		g.RegisterDependencies("c", []string{"a"})

		got := g.Resolve(Request{Keys: []string{"b"}, Cascade: true})

		want := []string{"b", "c", "a"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("self edge is ignored at registration", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("a", []string{"a", "b"})

		got := g.Resolve(Request{Keys: []string{"a"}, Cascade: true})

		want := []string{"a", "b"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("cascade from tag members", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})
		g.RegisterDependencies("user:1", []string{"profile:1"})

		got := g.Resolve(Request{Tags: []string{"users"}, Cascade: true})

		want := []string{"user:1", "profile:1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})
}

func TestRemove(t *testing.T) {
	t.Run("clears tag membership", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})
		g.RegisterTags("user:2", []string{"users"})

		g.Remove("user:1")

		got := g.Resolve(Request{Tags: []string{"users"}})
		want := []string{"user:2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("drops empty tags", func(t *testing.T) {
		g := New()
		g.RegisterTags("user:1", []string{"users"})

		g.Remove("user:1")

		if n := g.TagLen(); n != 0 {
			t.Errorf("TagLen() = %v, want 0", n)
		}
	})

	t.Run("unhooks the key from its parents", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("user:1", []string{"profile:1", "feed:1"})

		g.Remove("profile:1")

		got := g.Resolve(Request{Keys: []string{"user:1"}, Cascade: true})
		want := []string{"user:1", "feed:1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("unhooks the key from its children", func(t *testing.T) {
		g := New()
		g.RegisterDependencies("user:1", []string{"profile:1"})

		g.Remove("user:1")

		if n := g.KeyLen(); n != 0 {
			t.Errorf("KeyLen() = %v, want 0", n)
		}
	})

	t.Run("removing every key empties the graph", func(t *testing.T) {
		g := New()
		g.RegisterTags("a", []string{"t1", "t2"})
		g.RegisterDependencies("a", []string{"b", "c"})
		g.RegisterDependencies("b", []string{"c"})

		for _, key := range []string{"a", "b", "c"} {
			g.Remove(key)
		}

		if n := g.KeyLen(); n != 0 {
			t.Errorf("KeyLen() = %v, want 0", n)
		}
		if n := g.TagLen(); n != 0 {
			t.Errorf("TagLen() = %v, want 0", n)
		}
	})

	t.Run("removing an unknown key is a no-op", func(t *testing.T) {
		g := New()
		g.RegisterTags("a", []string{"t"})

		g.Remove("missing")

		if n := g.KeyLen(); n != 1 {
			t.Errorf("KeyLen() = %v, want 1", n)
		}
	})
}

func TestLens(t *testing.T) {
	g := New()

	g.RegisterTags("a", []string{"t1"})
	g.RegisterTags("b", []string{"t1", "t2"})
	g.RegisterDependencies("a", []string{"c"})

	if n := g.TagLen(); n != 2 {
		t.Errorf("TagLen() = %v, want 2", n)
	}
	// a, b tagged; c known only as a dependent.
	if n := g.KeyLen(); n != 3 {
		t.Errorf("KeyLen() = %v, want 3", n)
	}
}

func TestClear(t *testing.T) {
	g := New()

	g.RegisterTags("a", []string{"t1"})
	g.RegisterDependencies("a", []string{"b", "c"})

	g.Clear()

	if n := g.TagLen(); n != 0 {
		t.Errorf("TagLen() after Clear = %v, want 0", n)
	}
	if n := g.KeyLen(); n != 0 {
		t.Errorf("KeyLen() after Clear = %v, want 0", n)
	}
	if got := g.Resolve(Request{Keys: []string{"a"}, Cascade: true}); len(got) != 1 {
		t.Errorf("Resolve() after Clear = %v, want just the requested key", got)
	}

	// The graph must stay usable after a flush.
	g.RegisterTags("d", []string{"t2"})
	if got := g.Resolve(Request{Tags: []string{"t2"}}); len(got) != 1 || got[0] != "d" {
		t.Errorf("Resolve() after re-register = %v, want [d]", got)
	}
}

func TestGraphConcurrency(t *testing.T) {
	g := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key:%d", n)
			g.RegisterTags(key, []string{"shared", fmt.Sprintf("tag:%d", n%5)})
			g.RegisterDependencies(key, []string{fmt.Sprintf("child:%d", n)})
			_ = g.Resolve(Request{Tags: []string{"shared"}, Cascade: true})
			if n%2 == 0 {
				g.Remove(key)
			}
		}(i)
	}
	wg.Wait()

	got := g.Resolve(Request{Tags: []string{"shared"}})
	if len(got) != 10 {
		t.Errorf("Resolve() returned %d keys, want 10", len(got))
	}
}
