package notify

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func testRenderer() *Renderer {
	return NewRenderer(DefaultTemplates(), NewTemplateCache(time.Hour), time.Hour)
}

func TestRenderSubstitutesVariables(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("emergency_alert_push", map[string]string{"location": "MG Road"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Emergency near MG Road" {
		t.Errorf("render = %q", out)
	}
}

func TestRenderMissingVariables(t *testing.T) {
	r := testRenderer()
	_, err := r.Render("emergency_alert_sms", map[string]string{"location": "MG Road"})
	var mv *MissingVarsError
	if !errors.As(err, &mv) {
		t.Fatalf("expected MissingVarsError, got %v", err)
	}
	if !reflect.DeepEqual(mv.Missing, []string{"category", "severity"}) {
		t.Errorf("missing = %v, want sorted [category severity]", mv.Missing)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := testRenderer()
	_, err := r.Render("nope", nil)
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestRenderUsesCache(t *testing.T) {
	r := testRenderer()
	data := map[string]string{"location": "MG Road", "category": "breakdown", "severity": "high"}
	if _, err := r.Render("emergency_alert_sms", data); err != nil {
		t.Fatalf("first render: %v", err)
	}
	// Same data with different map ordering must hit the cache.
	again := map[string]string{"severity": "high", "location": "MG Road", "category": "breakdown"}
	if _, err := r.Render("emergency_alert_sms", again); err != nil {
		t.Fatalf("second render: %v", err)
	}
	st := r.CacheStats()
	if st.Hits != 1 {
		t.Errorf("cache hits = %d, want 1 (stats %+v)", st.Hits, st)
	}
}

func TestRenderFailureNotCached(t *testing.T) {
	r := testRenderer()
	if _, err := r.Render("emergency_alert_sms", nil); err == nil {
		t.Fatal("expected missing-variable error")
	}
	if st := r.CacheStats(); st.Entries != 0 {
		t.Errorf("failed render was cached: %+v", st)
	}
}
