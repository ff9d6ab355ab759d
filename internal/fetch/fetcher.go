// Package fetch defines the narrow contract to the external
// media-extraction capability and its yt-dlp-backed implementation.
package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/goatanime/instagram-bot/internal/model"
	"github.com/goatanime/instagram-bot/internal/platforms"
)

// ErrNoFiles reports a fetch that completed without producing output.
var ErrNoFiles = pkgerrors.New("fetch completed but no files were found")

// Fetcher is the media-extraction contract. Implementations write their
// output into destDir; the caller owns destDir and deletes it whatever
// the outcome, so partial output on failure is tolerated but pointless.
type Fetcher interface {
	Fetch(ctx context.Context, url, cookiePath string, p *platforms.Platform, destDir string) ([]model.MediaFile, error)
}

// Temp extensions yt-dlp leaves behind mid-download.
var skippedExtensions = []string{".part", ".ytdl"}

// collectFiles lists destDir into MediaFiles, skipping downloader
// leftovers. Returns ErrNoFiles when nothing usable was produced.
func collectFiles(destDir string) ([]model.MediaFile, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read download directory")
	}

	var files []model.MediaFile
	for _, entry := range entries {
		if entry.IsDir() || isSkipped(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, model.MediaFile{
			Path: filepath.Join(destDir, entry.Name()),
			Size: info.Size(),
		})
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}

func isSkipped(name string) bool {
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
