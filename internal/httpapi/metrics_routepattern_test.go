package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// GitLab posts to "/" while docs use "/webhook"; both routes are labelled by
// their own chi pattern, and unauthenticated deliveries land on 403.
func TestMetrics_WebhookRoutesLabelledByPattern(t *testing.T) {
	withSecret(t, "s3cret")
	h := NewMux(&mockService{ready: true})

	root := httpRequestsTotal.WithLabelValues("/", http.MethodPost, "200")
	alias := httpRequestsTotal.WithLabelValues("/webhook", http.MethodPost, "403")
	forbidden := webhooksTotal.WithLabelValues("unauthenticated", "forbidden")
	beforeRoot, beforeAlias, beforeForbidden := testutil.ToFloat64(root), testutil.ToFloat64(alias), testutil.ToFloat64(forbidden)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, webhookRequest("/", "s3cret", "Push Hook", pushBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, webhookRequest("/webhook", "wrong", "Push Hook", pushBody))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	if got := testutil.ToFloat64(root) - beforeRoot; got != 1 {
		t.Fatalf("requests_total{/,POST,200} delta=%v", got)
	}
	if got := testutil.ToFloat64(alias) - beforeAlias; got != 1 {
		t.Fatalf("requests_total{/webhook,POST,403} delta=%v", got)
	}
	if got := testutil.ToFloat64(forbidden) - beforeForbidden; got != 1 {
		t.Fatalf("webhooks_total{unauthenticated,forbidden} delta=%v", got)
	}
}
