package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/hmarr/codeowners"
	"github.com/rs/zerolog"

	"webhookd/internal/common/fsutil"
	"webhookd/internal/worker"
)

// codeownersRefs is the lookup order for the CODEOWNERS file.
var codeownersRefs = []string{"master", "main"}

// ReviewerSuggestion posts a note naming the code owners of the files a newly
// opened merge request touches.
type ReviewerSuggestion struct {
	cfg      NoteConfig
	repo     Repository
	log      zerolog.Logger
	local    string
	hasLocal bool
}

func NewReviewerSuggestion(log zerolog.Logger, cfg NoteConfig, repo Repository) *ReviewerSuggestion {
	local, ok := fsutil.ReadFileOr(cfg.LocalFile)
	return &ReviewerSuggestion{cfg: cfg, repo: repo, log: log, local: local, hasLocal: ok}
}

func (h *ReviewerSuggestion) Name() string { return "reviewer_suggestion" }

func (h *ReviewerSuggestion) Process(ctx context.Context, ev worker.Event) error {
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
	h.log.Info().Str("project", mr.Project.PathWithNamespace).Msg("processing reviewer suggestion")

	pid, iid := mr.Project.ID, mr.ObjectAttributes.IID
	files, err := h.repo.ChangedFiles(ctx, pid, iid)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no changed files in merge request !%d", iid)
	}
	h.log.Info().Strs("files", files).Msg("changed files")

	owners, err := h.changeOwners(ctx, pid, files)
	if err != nil {
		return err
	}
	author := "@" + mr.User.Username
	_, authorOwns := owners[author]
	authorOnly := authorOwns && len(owners) == 1
	delete(owners, author)
	reviewers := sortedKeys(owners)
	h.log.Info().Strs("owners", reviewers).Msg("change owners")

	text, ok := loadNoteContent(ctx, h.log, h.repo, pid, h.cfg.RemoteFile, h.local, h.hasLocal)
	if !ok {
		return fmt.Errorf("reviewer suggestion template: %w", errNoContent)
	}
	if text == "" {
		h.log.Warn().Msg("reviewer suggestion template is empty, not posting")
		return nil
	}

	body, err := RenderSuggestion(text, reviewers, author, authorOnly)
	if err != nil {
		return err
	}
	h.log.Info().Int("iid", iid).Str("project", mr.Project.PathWithNamespace).Msg("adding reviewer suggestion to newly opened merge request")
	return h.repo.PostNote(ctx, pid, iid, body)
}

func (h *ReviewerSuggestion) changeOwners(ctx context.Context, projectID int, files []string) (map[string]struct{}, error) {
	raw, err := h.repo.RawFile(ctx, projectID, "CODEOWNERS", codeownersRefs...)
	if err != nil {
		return nil, fmt.Errorf("CODEOWNERS is not present in %s: %w", strings.Join(codeownersRefs, ", "), err)
	}
	rules, err := codeowners.ParseFile(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse CODEOWNERS: %w", err)
	}
	owners := map[string]struct{}{}
	for _, f := range files {
		rule, err := rules.Match(f)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", f, err)
		}
		if rule == nil {
			continue
		}
		for _, o := range rule.Owners {
			owners[o.String()] = struct{}{}
		}
	}
	return owners, nil
}

// RenderSuggestion renders a Jinja-style template exposing data.codeowners,
// data.author and data.author_is_the_only_codeowner.
func RenderSuggestion(tpl string, codeowners []string, author string, authorOnly bool) (string, error) {
	t, err := pongo2.FromString(tpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	owners := append([]string(nil), codeowners...)
	sort.Strings(owners)
	out, err := t.Execute(pongo2.Context{
		"data": map[string]any{
			"codeowners":                   owners,
			"author":                       author,
			"author_is_the_only_codeowner": authorOnly,
		},
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
