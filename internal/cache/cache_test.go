package cache

import (
	"os"
	"testing"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/module"
)

func TestMemoryRoundTrip(t *testing.T) {
	c := New("")
	key := Key{Path: "/a.js", ContentHash: "abc", Platform: config.PlatformIOS}
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss before Put")
	}
	want := &module.Transformed{Path: "/a.js", Code: "module.exports = 1;"}
	c.Put(key, want)
	got, ok := c.Get(key)
	if !ok || got.Code != want.Code {
		t.Fatalf("Get after Put = %v, %v", got, ok)
	}
}

func TestDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	key := Key{Path: "/a.js", ContentHash: "xyz", Platform: config.PlatformAndroid, Dev: true}
	want := &module.Transformed{
		Path: "/a.js",
		Code: "module.exports = 2;",
		Dependencies: []module.Dependency{
			{Specifier: "./b", ResolvedPath: "/b.js", Kind: module.KindStatic},
		},
	}
	c.Put(key, want)
	c.Wait()

	// Fresh cache over the same directory must hit disk, not memory.
	c2 := New(dir)
	got, ok := c2.Get(key)
	if !ok {
		t.Fatal("expected disk hit on fresh Cache instance")
	}
	if got.Code != want.Code || len(got.Dependencies) != 1 || got.Dependencies[0].Specifier != "./b" {
		t.Fatalf("disk round-trip mismatch: %+v", got)
	}
}

func TestReapBoundsEntryCount(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	for i := 0; i < 5; i++ {
		key := Key{Path: "/a.js", ContentHash: string(rune('a' + i)), Platform: config.PlatformIOS}
		c.Put(key, &module.Transformed{Path: "/a.js"})
	}
	c.Wait()
	Reap(dir, 2)

	entries, err := os.ReadDir(dir + "/" + subdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) > 2 {
		t.Fatalf("Reap left %d entries, want <= 2", len(entries))
	}
}
