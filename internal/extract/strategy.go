package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Strategy expands an archive into a directory. Implementations are
// consumed as black boxes by the Extractor: the primary is tried first
// and the secondary only on primary failure.
type Strategy interface {
	Name() string
	Unpack(ctx context.Context, archivePath, destDir string) error
}

// ArchiveStrategy is the primary in-process strategy. It expands .zip,
// .tar.gz/.tgz and .tar.zst archives without shelling out.
type ArchiveStrategy struct{}

func (ArchiveStrategy) Name() string { return "archive" }

func (ArchiveStrategy) Unpack(ctx context.Context, archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return unpackZip(ctx, archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return unpackTar(ctx, archivePath, destDir, decompressGzip)
	case strings.HasSuffix(archivePath, ".tar.zst"):
		return unpackTar(ctx, archivePath, destDir, decompressZstd)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func unpackZip(ctx context.Context, archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}

		if err := writeFile(target, src, f.Mode()); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}

	return nil
}

type decompressor func(io.Reader) (io.ReadCloser, error)

func decompressGzip(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func decompressZstd(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

func unpackTar(ctx context.Context, archivePath, destDir string, decompress decompressor) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	dr, err := decompress(f)
	if err != nil {
		return fmt.Errorf("failed to decompress archive: %w", err)
	}
	defer dr.Close()

	tr := tar.NewReader(dr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		default:
			// Symlinks and special files are not part of template
			// bundles; skip them rather than fail the whole unpack.
		}
	}
}

// safeJoin joins an archive entry name onto the destination directory,
// rejecting entries that would escape it. An entry that resolves to the
// destination itself (GNU tar writes a "./" entry for the archive root)
// is valid and maps to the destination.
func safeJoin(destDir, name string) (string, error) {
	cleanDest := filepath.Clean(destDir)
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target == cleanDest {
		return cleanDest, nil
	}
	if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0200)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return out.Close()
}

// ExternalStrategy is the secondary strategy: it shells out to an
// archiving utility present on the host. Used only when the in-process
// strategy failed.
type ExternalStrategy struct{}

func (ExternalStrategy) Name() string { return "external" }

// Available reports whether a suitable external utility exists for the
// given archive.
func (ExternalStrategy) Available(archivePath string) bool {
	_, err := exec.LookPath(externalTool(archivePath))
	return err == nil
}

func externalTool(archivePath string) string {
	if strings.HasSuffix(archivePath, ".zip") {
		return "unzip"
	}
	return "tar"
}

func (s ExternalStrategy) Unpack(ctx context.Context, archivePath, destDir string) error {
	tool := externalTool(archivePath)
	bin, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("external tool %s not found: %w", tool, err)
	}

	var cmd *exec.Cmd
	if tool == "unzip" {
		cmd = exec.CommandContext(ctx, bin, "-o", archivePath, "-d", destDir)
	} else {
		cmd = exec.CommandContext(ctx, bin, "-xf", archivePath, "-C", destDir)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", tool, err, strings.TrimSpace(string(out)))
	}
	return nil
}
