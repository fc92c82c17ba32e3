// Package extract implements the template extraction lifecycle: resolving
// on-disk locations, unpacking archives with a primary and a fallback
// strategy, signaling completion through a direct callback or a marker file,
// and reconciling recorded state with on-disk evidence.
package extract

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// illegalSegmentChars matches characters that cannot appear in a path
// segment on any supported filesystem.
var illegalSegmentChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// sanitizeSegment strips path-illegal characters from a single segment.
func sanitizeSegment(s string) string {
	s = illegalSegmentChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	// Dot segments would escape or no-op the join
	for s == "." || s == ".." {
		s = ""
	}
	return s
}

// TemplatePath returns the deterministic relative location of the final
// versioned directory for a template: owner/bucket/name_v{version}.
// Pure and idempotent so the worker and the reconciliation scanner agree
// on the expected location without communicating.
func TemplatePath(ownerID, bucket, name, version string) string {
	dir := fmt.Sprintf("%s_v%s", sanitizeSegment(name), sanitizeSegment(version))
	return path.Join(sanitizeSegment(ownerID), sanitizeSegment(bucket), dir)
}

// WorkPath returns the pre-version working directory the worker unpacks
// into before renaming the result to its final versioned location.
func WorkPath(ownerID, bucket, name string) string {
	return path.Join(sanitizeSegment(ownerID), sanitizeSegment(bucket), sanitizeSegment(name))
}

// QualifyPath normalizes a relative extraction path into the canonical
// owner-scoped form. A bare name gets the owner and lifecycle bucket
// prepended; an already-qualified path passes through unchanged, so
// qualification is idempotent.
func QualifyPath(ownerID, bucket, p string) string {
	p = strings.Trim(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
	owner := sanitizeSegment(ownerID)
	if p == "" || owner == "" {
		return p
	}
	// Only a multi-segment path can already be qualified; a single segment
	// is always a bare directory name, even one spelled like the owner.
	if strings.HasPrefix(p, owner+"/") {
		return p
	}
	return path.Join(owner, sanitizeSegment(bucket), p)
}
