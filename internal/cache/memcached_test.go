package cache

import (
	"strings"
	"testing"
)

func TestMemcachedKey(t *testing.T) {
	c := &MemcachedCache{keyPrefix: "surveysync"}

	if got := c.key("present:submissions:uuid:1"); got != "surveysync:present:submissions:uuid:1" {
		t.Errorf("key() = %q", got)
	}

	long := strings.Repeat("x", 300)
	hashed := c.key(long)
	if len(hashed) > maxMemcachedKey || !strings.HasPrefix(hashed, "surveysync:h:") {
		t.Errorf("key(long) = %q", hashed)
	}
	if hashed != c.key(long) {
		t.Error("hashed key is not stable")
	}

	spaced := c.key("has space")
	if strings.Contains(spaced, " ") {
		t.Errorf("key(spaced) = %q still contains whitespace", spaced)
	}
	if spaced == c.key("has  space") {
		t.Error("distinct keys hashed to the same value")
	}
}
