package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	headerToken = "X-Gitlab-Token"
	headerEvent = "X-Gitlab-Event"
	headerID    = "X-Event-Id"
)

func validToken(got string) bool {
	return subtle.ConstantTimeCompare(webhookSecret, []byte(got)) == 1
}

// handleWebhook godoc
// @Summary      Receive a GitLab webhook
// @Description  Validates the shared token and the payload, then queues the event for the background worker.
// @Tags         webhooks
// @Accept       json
// @Produce      plain
// @Param        X-Gitlab-Token  header  string  false  "Shared webhook secret"
// @Param        X-Gitlab-Event  header  string  true   "GitLab event name, e.g. Merge Request Hook"
// @Success      200  {string}  string  "OK"
// @Failure      400  {object}  types.ErrorResponse
// @Failure      403  {object}  types.ErrorResponse
// @Failure      413  {object}  types.ErrorResponse
// @Failure      415  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /webhook [post]
func handleWebhook(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r)
		if !validToken(r.Header.Get(headerToken)) {
			log.Error().Msg("invalid X-Gitlab-Token header")
			countWebhook("unauthenticated", "forbidden")
			writeJSONError(w, http.StatusForbidden, "invalid X-Gitlab-Token header")
			return
		}
		event := strings.TrimSpace(r.Header.Get(headerEvent))
		if shuttingDown() || !svc.Ready() {
			countWebhook(event, "unavailable")
			writeJSONError(w, http.StatusServiceUnavailable, "worker is not running")
			return
		}
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			log.Error().Str("content_type", ct).Msg("invalid content type")
			countWebhook(event, "bad_request")
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		if event == "" {
			log.Error().Msg("missing X-Gitlab-Event header")
			countWebhook(event, "bad_request")
			writeJSONError(w, http.StatusBadRequest, "missing X-Gitlab-Event header")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				countWebhook(event, "too_large")
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			countWebhook(event, "bad_request")
			writeJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		payload, err := decodeEnvelope(body)
		if err != nil {
			log.Error().Err(err).Str("event", event).Msg("rejected webhook payload")
			countWebhook(event, "bad_request")
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		ev := svc.Enqueue(event, payload)
		countWebhook(event, "accepted")
		w.Header().Set(headerID, ev.ID)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
