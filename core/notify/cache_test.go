package notify

import (
	"testing"
	"time"
)

func TestCacheKeyIgnoresDataOrder(t *testing.T) {
	a := CacheKey("emergency_alert_sms", map[string]string{"location": "MG Road", "severity": "high"})
	b := CacheKey("emergency_alert_sms", map[string]string{"severity": "high", "location": "MG Road"})
	if a != b {
		t.Errorf("keys differ for identical data: %q vs %q", a, b)
	}
	c := CacheKey("emergency_alert_sms", map[string]string{"location": "MG Road", "severity": "low"})
	if a == c {
		t.Error("keys collide for different data")
	}
	d := CacheKey("incident_status_sms", map[string]string{"location": "MG Road", "severity": "high"})
	if a == d {
		t.Error("keys collide for different templates")
	}
}

func TestTemplateCacheHitMiss(t *testing.T) {
	c := NewTemplateCache(time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("k", "body", 0)
	v, ok := c.Get("k")
	if !ok || v != "body" {
		t.Fatalf("get = %q, %v; want body, true", v, ok)
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", st)
	}
	if st.HitRate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", st.HitRate)
	}
}

func TestTemplateCacheExpiry(t *testing.T) {
	c := NewTemplateCache(time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k", "body", time.Minute)

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived its TTL")
	}
	if st := c.Stats(); st.Entries != 0 {
		t.Errorf("expired entry not removed: %+v", st)
	}
}

func TestTemplateCacheFlushKeepsCounters(t *testing.T) {
	c := NewTemplateCache(time.Hour)
	c.Set("k", "body", 0)
	c.Get("k")
	c.Flush()
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived flush")
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("counters reset by flush: %+v", st)
	}
}
