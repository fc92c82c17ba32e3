package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/google/uuid"
)

// StatusReporter is the direct callback path for reporting a terminal
// extraction outcome. When the extractor has no reporter, or the reporter
// call fails, a successful extraction falls back to the completion marker
// channel and reconciliation closes the gap later.
type StatusReporter interface {
	ReportStatus(ctx context.Context, templateID uuid.UUID, status models.ExtractionStatus, relPath string) error
}

// Request describes one unpack of a downloaded archive.
type Request struct {
	TemplateID  uuid.UUID
	OwnerID     string
	Bucket      string
	Name        string
	Version     string
	ArchivePath string
}

// Result is the terminal outcome of a single extraction.
type Result struct {
	Status     models.ExtractionStatus
	FinalPath  string // Relative, owner-scoped; empty on failure
	EntryCount int
}

// Extractor turns a downloaded archive into a directory of files at the
// resolved versioned path and reports the outcome exactly once.
type Extractor struct {
	root      string // Absolute root of the extracted template trees
	primary   Strategy
	secondary Strategy
	reporter  StatusReporter
	logger    *slog.Logger
}

// New creates an Extractor rooted at the templates directory. reporter may
// be nil when no status endpoint is reachable from the worker.
func New(root string, primary, secondary Strategy, reporter StatusReporter) *Extractor {
	return &Extractor{
		root:      root,
		primary:   primary,
		secondary: secondary,
		reporter:  reporter,
		logger:    slog.Default(),
	}
}

// Run executes the extraction algorithm: clear the working directory, try
// the primary strategy with fallback to the secondary, verify the result is
// non-empty, move it to its final versioned location, drop the source
// archive, and report the outcome. Strategy failures are not retried beyond
// the documented fallback.
func (e *Extractor) Run(ctx context.Context, req Request) (Result, error) {
	workRel := WorkPath(req.OwnerID, req.Bucket, req.Name)
	workDir := filepath.Join(e.root, filepath.FromSlash(workRel))

	if err := resetDir(workDir); err != nil {
		return e.fail(ctx, req, fmt.Errorf("failed to prepare working directory: %w", err))
	}

	if err := e.unpack(ctx, req.ArchivePath, workDir); err != nil {
		return e.fail(ctx, req, err)
	}

	count, err := CountEntries(workDir)
	if err != nil {
		return e.fail(ctx, req, fmt.Errorf("failed to inspect extracted tree: %w", err))
	}
	if count == 0 {
		// An unpack that "succeeds" into an empty directory is a failure.
		return e.fail(ctx, req, errors.New("extraction produced no entries"))
	}

	finalRel := TemplatePath(req.OwnerID, req.Bucket, req.Name, req.Version)
	finalDir := filepath.Join(e.root, filepath.FromSlash(finalRel))

	// Most filesystems have no atomic directory swap; remove-then-rename
	// is the closest approximation.
	if err := os.RemoveAll(finalDir); err != nil {
		return e.fail(ctx, req, fmt.Errorf("failed to clear final directory: %w", err))
	}
	if err := os.Rename(workDir, finalDir); err != nil {
		return e.fail(ctx, req, fmt.Errorf("failed to move extracted tree into place: %w", err))
	}

	if err := os.Remove(req.ArchivePath); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("Failed to delete source archive", "archive", req.ArchivePath, "error", err)
	}

	res := Result{Status: models.ExtractionComplete, FinalPath: finalRel, EntryCount: count}
	e.report(ctx, req, res)
	return res, nil
}

// unpack tries the primary strategy and falls back to the secondary.
func (e *Extractor) unpack(ctx context.Context, archivePath, workDir string) error {
	primaryErr := e.primary.Unpack(ctx, archivePath, workDir)
	if primaryErr == nil {
		return nil
	}

	e.logger.Warn("Primary unpack strategy failed, trying fallback",
		"strategy", e.primary.Name(), "archive", archivePath, "error", primaryErr)

	if e.secondary == nil {
		return fmt.Errorf("%s strategy failed: %w", e.primary.Name(), primaryErr)
	}

	// Leftovers from the failed primary attempt must not count as output.
	if err := resetDir(workDir); err != nil {
		return fmt.Errorf("failed to reset working directory for fallback: %w", err)
	}

	if secondaryErr := e.secondary.Unpack(ctx, archivePath, workDir); secondaryErr != nil {
		return fmt.Errorf("all strategies failed: %s: %w; %s: %s",
			e.primary.Name(), primaryErr, e.secondary.Name(), secondaryErr)
	}

	return nil
}

func (e *Extractor) fail(ctx context.Context, req Request, cause error) (Result, error) {
	e.logger.Error("Extraction failed",
		"template_id", req.TemplateID, "archive", req.ArchivePath, "error", cause)

	// A failed extraction leaves the prior path untouched and only flips
	// the status. In unreachable-callback mode failures are not marked;
	// the record stays pending until an operator or staleness flagging
	// looks at it.
	if e.reporter != nil {
		if err := e.reporter.ReportStatus(ctx, req.TemplateID, models.ExtractionFailed, ""); err != nil {
			e.logger.Error("Failed to report extraction failure",
				"template_id", req.TemplateID, "error", err)
		}
	}

	return Result{Status: models.ExtractionFailed}, cause
}

// report delivers a successful outcome exactly once: directly through the
// reporter when reachable, otherwise through a completion marker next to
// the final directory.
func (e *Extractor) report(ctx context.Context, req Request, res Result) {
	if e.reporter != nil {
		err := e.reporter.ReportStatus(ctx, req.TemplateID, res.Status, res.FinalPath)
		if err == nil {
			return
		}
		e.logger.Warn("Status callback unreachable, falling back to completion marker",
			"template_id", req.TemplateID, "error", err)
	}

	parentDir := filepath.Join(e.root, filepath.FromSlash(path.Dir(res.FinalPath)))
	marker := Marker{FinalPath: res.FinalPath, EntryCount: res.EntryCount}
	if err := WriteMarker(parentDir, path.Base(res.FinalPath), marker); err != nil {
		e.logger.Error("Failed to write completion marker",
			"template_id", req.TemplateID, "path", res.FinalPath, "error", err)
	}
}

// resetDir clears dir if it exists and (re)creates it empty.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// CountEntries walks dir and counts regular files.
func CountEntries(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
