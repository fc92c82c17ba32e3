package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/deploykit/templatehub/internal/status"
)

// Scanner closes the gap left by workers that could not call back: it
// sweeps templates stuck in a non-terminal state (pending or extracting),
// looks for completion markers in their expected parent directories, and
// promotes matches to complete. Safe to run repeatedly or concurrently;
// promoted templates drop out of the selection.
type Scanner struct {
	store         status.Store
	root          string // Absolute root of the extracted template trees
	defaultBucket string
	staleAfter    time.Duration // 0 disables staleness flagging
	logger        *slog.Logger
}

// SweepResult reports the outcome of one reconciliation pass.
type SweepResult struct {
	Checked  int `json:"checked"`
	Promoted int `json:"promoted"`
	Stale    int `json:"stale"`
}

func NewScanner(store status.Store, root, defaultBucket string, staleAfter time.Duration) *Scanner {
	return &Scanner{
		store:         store,
		root:          root,
		defaultBucket: defaultBucket,
		staleAfter:    staleAfter,
		logger:        slog.Default(),
	}
}

// Sweep runs one reconciliation pass over all non-terminal templates.
func (s *Scanner) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	unresolved, err := s.store.ListUnresolved(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to query unresolved templates: %w", err)
	}

	for i := range unresolved {
		tpl := &unresolved[i]
		res.Checked++

		promoted, err := s.reconcileOne(ctx, tpl)
		if err != nil {
			s.logger.Error("Failed to reconcile template", "template_id", tpl.ID, "error", err)
			continue
		}
		if promoted {
			res.Promoted++
			continue
		}

		if s.isStale(tpl) {
			res.Stale++
			s.logger.Warn("Template unresolved beyond staleness threshold",
				"template_id", tpl.ID, "name", tpl.Name,
				"pending_since", pendingSince(tpl), "threshold", s.staleAfter)
		}
	}

	s.logger.Info("Reconciliation sweep finished",
		"checked", res.Checked, "promoted", res.Promoted, "stale", res.Stale)
	return res, nil
}

func (s *Scanner) reconcileOne(ctx context.Context, tpl *models.Template) (bool, error) {
	rel := s.expectedPath(tpl)
	finalDirName := path.Base(rel)
	parentDir := filepath.Join(s.root, filepath.FromSlash(path.Dir(rel)))

	marker, markerPath, err := LatestMarker(parentDir, finalDirName)
	if err != nil {
		return false, err
	}
	if marker == nil {
		// A non-terminal template with no marker is "not yet observed",
		// not evidence of failure.
		return false, nil
	}

	// Bare legacy markers carry no payload; the expected location stands in.
	finalPath := marker.FinalPath
	if finalPath == "" {
		finalPath = rel
	}

	if _, err := s.store.SetStatus(ctx, tpl.ID, models.ExtractionComplete, finalPath); err != nil {
		return false, fmt.Errorf("failed to promote template: %w", err)
	}

	s.logger.Info("Promoted template from completion marker",
		"template_id", tpl.ID, "path", finalPath, "entries", marker.EntryCount)

	// The promotion is recorded; the marker has served its purpose.
	if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove consumed marker", "path", markerPath, "error", err)
	}

	return true, nil
}

// expectedPath returns the recorded extraction path, or the resolver's
// deterministic location when no path was ever recorded.
func (s *Scanner) expectedPath(tpl *models.Template) string {
	view := status.Resolve(tpl)
	if view.Path != "" {
		return view.Path
	}
	bucket := tpl.Bucket
	if bucket == "" {
		bucket = s.defaultBucket
	}
	return TemplatePath(tpl.OwnerID, bucket, tpl.Name, tpl.Version)
}

func (s *Scanner) isStale(tpl *models.Template) bool {
	if s.staleAfter <= 0 {
		return false
	}
	return time.Since(pendingSince(tpl)) > s.staleAfter
}

func pendingSince(tpl *models.Template) time.Time {
	if tpl.LastExtractionDate != nil {
		return *tpl.LastExtractionDate
	}
	return tpl.CreatedAt
}
