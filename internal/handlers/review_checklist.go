package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"webhookd/internal/common/fsutil"
	"webhookd/internal/scm"
	"webhookd/internal/worker"
)

// errNoContent is returned when neither the repository nor the local
// fallback provides the note body.
var errNoContent = errors.New("no content defined locally or in the repository")

// loadNoteContent fetches a note body from the project, falling back to the
// local copy when the remote read fails for any reason. ok is false when
// neither is available.
func loadNoteContent(ctx context.Context, log zerolog.Logger, repo Repository, projectID int, remote, local string, hasLocal bool) (string, bool) {
	if remote != "" {
		body, err := repo.RawFile(ctx, projectID, remote)
		if err == nil {
			return body, true
		}
		if !errors.Is(err, scm.ErrFileNotFound) {
			log.Warn().Err(err).Str("path", remote).Int("project_id", projectID).Msg("failed to read remote file, using local fallback")
		}
	}
	return local, hasLocal
}

// ReviewChecklist posts a review checklist on newly opened merge requests.
type ReviewChecklist struct {
	cfg      NoteConfig
	repo     Repository
	log      zerolog.Logger
	local    string
	hasLocal bool
}

func NewReviewChecklist(log zerolog.Logger, cfg NoteConfig, repo Repository) *ReviewChecklist {
	local, ok := fsutil.ReadFileOr(cfg.LocalFile)
	return &ReviewChecklist{cfg: cfg, repo: repo, log: log, local: local, hasLocal: ok}
}

func (h *ReviewChecklist) Name() string { return "review_checklist" }

func (h *ReviewChecklist) Process(ctx context.Context, ev worker.Event) error {
	if kindOf(ev) != KindMergeRequest {
		return nil
	}
	var mr mergeRequestEvent
	if err := ev.Payload.Decode(&mr); err != nil {
		return fmt.Errorf("decode merge request: %w", err)
	}
	if !h.cfg.applies(mr) {
		return nil
	}
	h.log.Info().Str("project", mr.Project.PathWithNamespace).Msg("processing merge request checklist")

	checklist, ok := loadNoteContent(ctx, h.log, h.repo, mr.Project.ID, h.cfg.RemoteFile, h.local, h.hasLocal)
	if !ok {
		return fmt.Errorf("checklist: %w", errNoContent)
	}
	if checklist == "" {
		h.log.Warn().Msg("checklist is empty, not posting")
		return nil
	}

	iid := mr.ObjectAttributes.IID
	h.log.Info().Int("iid", iid).Str("project", mr.Project.PathWithNamespace).Msg("adding checklist to newly opened merge request")
	return h.repo.PostNote(ctx, mr.Project.ID, iid, checklist)
}
