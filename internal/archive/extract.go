// Package archive unpacks the confirmation archive downloaded from the portal.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/cep-verify/internal/apperrors"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Extract unpacks every entry of the ZIP at archivePath into destDir and
// returns the number of files written. destDir and its parents are created
// as needed. On failure the partially populated destDir is removed and an
// *apperrors.ExtractionError is returned. The archive itself is left alone.
func Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, &apperrors.ExtractionError{ArchivePath: archivePath, Err: err}
	}
	defer reader.Close()

	_, statErr := os.Stat(destDir)
	preexisting := statErr == nil

	count, entry, err := extractAll(ctx, reader, destDir)
	if err != nil {
		if !preexisting {
			_ = os.RemoveAll(destDir)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, &apperrors.ExtractionError{ArchivePath: archivePath, Entry: entry, Err: err}
	}
	return count, nil
}

func extractAll(ctx context.Context, reader *zip.ReadCloser, destDir string) (int, string, error) {
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return 0, "", err
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return 0, "", err
	}

	count := 0
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return 0, file.Name, err
		}

		target, err := safeJoin(root, file.Name)
		if err != nil {
			return 0, file.Name, err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return 0, file.Name, err
			}
			continue
		}

		if err := writeEntry(file, target); err != nil {
			return 0, file.Name, err
		}
		count++
	}
	return count, "", nil
}

// safeJoin resolves name under root and rejects entries escaping it.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry escapes destination directory")
	}
	return target, nil
}

func writeEntry(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}

	// #nosec G110 -- archives come from the portal and are bounded by batch size
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
