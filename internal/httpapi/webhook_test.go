package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"webhookd/pkg/types"
)

const pushBody = `{"object_kind":"push","ref":"refs/heads/feature/ABC-12","user_name":"Alice","project":{"id":7,"path_with_namespace":"group/app"},"commits":[]}`

func webhookRequest(path, token, event, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(headerToken, token)
	}
	if event != "" {
		req.Header.Set(headerEvent, event)
	}
	return req
}

func withSecret(t *testing.T, s string) {
	t.Helper()
	SetWebhookSecret(s)
	t.Cleanup(func() { SetWebhookSecret("") })
}

func TestWebhookQueuesEvent(t *testing.T) {
	withSecret(t, "s3cret")
	svc := &mockService{ready: true}
	before := testutil.ToFloat64(webhooksTotal.WithLabelValues("Push Hook", "accepted"))

	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/", "s3cret", "Push Hook", pushBody))

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	evs := svc.events()
	if len(evs) != 1 {
		t.Fatalf("queued=%d", len(evs))
	}
	if evs[0].Kind != "Push Hook" || evs[0].Payload.Str("object_kind") != "push" || evs[0].Payload.Str("ref") != "refs/heads/feature/ABC-12" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if got := w.Header().Get(headerID); got != evs[0].ID {
		t.Fatalf("X-Event-Id=%q want %q", got, evs[0].ID)
	}
	if after := testutil.ToFloat64(webhooksTotal.WithLabelValues("Push Hook", "accepted")); after != before+1 {
		t.Fatalf("accepted counter before=%v after=%v", before, after)
	}
}

func TestWebhookAliasPath(t *testing.T) {
	withSecret(t, "s3cret")
	svc := &mockService{ready: true}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/webhook", "s3cret", "Merge Request Hook", `{"object_kind":"merge_request"}`))
	if w.Code != http.StatusOK || len(svc.events()) != 1 {
		t.Fatalf("status=%d queued=%d", w.Code, len(svc.events()))
	}
}

func TestWebhookRejectsBadToken(t *testing.T) {
	withSecret(t, "s3cret")
	for _, token := range []string{"", "wrong", "s3cret "} {
		svc := &mockService{ready: true}
		w := httptest.NewRecorder()
		NewMux(svc).ServeHTTP(w, webhookRequest("/", token, "Push Hook", pushBody))
		if w.Code != http.StatusForbidden {
			t.Fatalf("token %q: status=%d", token, w.Code)
		}
		var body types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != http.StatusForbidden {
			t.Fatalf("token %q: body=%s err=%v", token, w.Body.String(), err)
		}
		if len(svc.events()) != 0 {
			t.Fatalf("token %q: event queued", token)
		}
	}
}

func TestWebhookEmptySecretAcceptsMissingToken(t *testing.T) {
	withSecret(t, "")
	svc := &mockService{ready: true}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/", "", "Push Hook", pushBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	withSecret(t, "s3cret")
	cases := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"content type", func() *http.Request {
			r := webhookRequest("/", "s3cret", "Push Hook", pushBody)
			r.Header.Set("Content-Type", "text/plain")
			return r
		}, http.StatusUnsupportedMediaType},
		{"missing event header", func() *http.Request {
			return webhookRequest("/", "s3cret", "", pushBody)
		}, http.StatusBadRequest},
		{"invalid json", func() *http.Request {
			return webhookRequest("/", "s3cret", "Push Hook", `{"object_kind":`)
		}, http.StatusBadRequest},
		{"not an object", func() *http.Request {
			return webhookRequest("/", "s3cret", "Push Hook", `[1,2]`)
		}, http.StatusBadRequest},
		{"wrong field type", func() *http.Request {
			return webhookRequest("/", "s3cret", "Push Hook", `{"object_kind":5}`)
		}, http.StatusBadRequest},
		{"project id not integer", func() *http.Request {
			return webhookRequest("/", "s3cret", "Push Hook", `{"object_kind":"push","project":{"id":"seven"}}`)
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		svc := &mockService{ready: true}
		w := httptest.NewRecorder()
		NewMux(svc).ServeHTTP(w, tc.req())
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, w.Code, tc.status, w.Body.String())
		}
		if len(svc.events()) != 0 {
			t.Fatalf("%s: event queued", tc.name)
		}
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	withSecret(t, "")
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	svc := &mockService{ready: true}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/", "", "Push Hook", pushBody))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestWebhookUnavailable(t *testing.T) {
	withSecret(t, "")
	svc := &mockService{ready: false}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/", "", "Push Hook", pushBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: status=%d", w.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	SetBaseContext(ctx)
	defer SetBaseContext(nil)
	svc.ready = true
	w = httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, webhookRequest("/", "", "Push Hook", pushBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("shutting down: status=%d", w.Code)
	}
	if len(svc.events()) != 0 {
		t.Fatalf("event queued while unavailable")
	}
}

func TestDecodeEnvelopeKeepsNumbers(t *testing.T) {
	p, err := decodeEnvelope([]byte(`{"object_kind":"merge_request","project":{"id":12345678901}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var v struct {
		Project struct {
			ID int64 `json:"id"`
		} `json:"project"`
	}
	if err := p.Decode(&v); err != nil {
		t.Fatalf("typed decode: %v", err)
	}
	if v.Project.ID != 12345678901 {
		t.Fatalf("id=%d", v.Project.ID)
	}
}
