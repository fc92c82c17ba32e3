package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	markerPrefix       = ".extracted-"
	markerSuffix       = ".json"
	legacyMarkerSuffix = ".done"
)

// Marker is the completion side channel written into the parent of the
// final directory when the worker has no reachable status callback. The
// reconciliation scanner reads it to promote the template to complete.
type Marker struct {
	FinalPath   string    `json:"final_path"`
	EntryCount  int       `json:"entry_count"`
	ExtractedAt time.Time `json:"extracted_at"`
	MarkerID    string    `json:"marker_id"`
}

// MarkerFileName returns the canonical marker name for a final directory.
func MarkerFileName(finalDirName string) string {
	return markerPrefix + finalDirName + markerSuffix
}

// WriteMarker persists a completion marker into parentDir, keyed by the
// final directory name.
func WriteMarker(parentDir, finalDirName string, m Marker) error {
	if m.MarkerID == "" {
		m.MarkerID = uuid.NewString()
	}
	if m.ExtractedAt.IsZero() {
		m.ExtractedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	target := filepath.Join(parentDir, MarkerFileName(finalDirName))
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

// LatestMarker scans parentDir for completion markers associated with the
// given final directory name and returns the most recently written one
// along with its file path. Both the canonical name and the legacy
// "<dir>.done" convention are accepted; a legacy file whose body is not a
// marker document still counts, as a bare marker with no payload. A nil
// marker with a nil error means no marker was found, which is not
// evidence of failure.
func LatestMarker(parentDir, finalDirName string) (*Marker, string, error) {
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to list %s: %w", parentDir, err)
	}

	candidates := map[string]bool{
		MarkerFileName(finalDirName):     true,
		finalDirName + legacyMarkerSuffix: true,
	}

	var (
		best      *Marker
		bestPath  string
		bestMtime time.Time
		matched   int
	)
	for _, entry := range entries {
		if entry.IsDir() || !candidates[entry.Name()] {
			continue
		}
		matched++

		full := filepath.Join(parentDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			slog.Warn("Failed to stat marker candidate", "path", full, "error", err)
			continue
		}

		m, err := readMarker(full)
		if err != nil {
			if strings.HasSuffix(entry.Name(), legacyMarkerSuffix) {
				// Older workers touched a bare "<dir>.done" file with no
				// body. Its presence alone signals completion.
				m = &Marker{}
			} else {
				// A malformed canonical marker degrades to "no data"; the
				// record stays untouched until a readable one appears.
				slog.Warn("Skipping unreadable marker", "path", full, "error", err)
				continue
			}
		}

		if best == nil || info.ModTime().After(bestMtime) {
			best = m
			bestPath = full
			bestMtime = info.ModTime()
		}
	}

	if matched > 1 {
		slog.Warn("Multiple completion markers for one template, using most recent",
			"dir", finalDirName, "candidates", matched, "chosen", bestPath)
	}

	return best, bestPath, nil
}

func readMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse marker: %w", err)
	}
	if m.FinalPath == "" {
		return nil, fmt.Errorf("marker missing final path")
	}
	return &m, nil
}
