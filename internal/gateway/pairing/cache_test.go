package pairing

import (
	"strings"
	"testing"
)

func TestCacheLatestWins(t *testing.T) {
	c := NewCache()

	if _, ok := c.Get("alice"); ok {
		t.Fatal("empty cache should report no artifact")
	}

	c.Put("alice", "artifact-1")
	c.Put("alice", "artifact-2")

	got, ok := c.Get("alice")
	if !ok || got != "artifact-2" {
		t.Errorf("Get = %q, %v; want artifact-2, true", got, ok)
	}
}

func TestCachePurge(t *testing.T) {
	c := NewCache()
	c.Put("alice", "artifact")
	c.Put("bob", "other")

	c.Purge("alice")
	if _, ok := c.Get("alice"); ok {
		t.Error("purged entry still present")
	}
	if _, ok := c.Get("bob"); !ok {
		t.Error("purge removed an unrelated entry")
	}

	// purging an absent entry is a no-op
	c.Purge("alice")
}

func TestRenderQR(t *testing.T) {
	artifact, err := RenderQR("2@AbCdEf,pairing,payload")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(artifact, "data:image/png;base64,") {
		t.Errorf("artifact is not a PNG data URL: %.40s", artifact)
	}
}
