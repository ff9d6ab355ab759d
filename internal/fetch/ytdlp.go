package fetch

import (
	"context"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/model"
	"github.com/goatanime/instagram-bot/internal/platforms"
)

// YTDLP runs the yt-dlp extractor as the fetch collaborator. Retries on
// flaky fragments happen inside yt-dlp; the orchestrator never retries.
type YTDLP struct {
	log *logrus.Entry
}

// NewYTDLP creates the yt-dlp backed fetcher.
func NewYTDLP(log *logrus.Entry) *YTDLP {
	return &YTDLP{log: log}
}

// Fetch downloads url into destDir using the platform's option set and
// the supplied cookie artifact (empty cookiePath means none).
func (y *YTDLP) Fetch(ctx context.Context, url, cookiePath string, p *platforms.Platform, destDir string) ([]model.MediaFile, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Retries("3").
		FragmentRetries("3").
		Format(p.FetchFormat).
		Output(filepath.Join(destDir, "%(title)s.%(ext)s"))

	if cookiePath != "" {
		dl = dl.Cookies(cookiePath)
	} else {
		y.log.WithField("platform", p.Name).Warn("no valid cookie artifact, private content may fail")
	}

	if _, err := dl.Run(ctx, url); err != nil {
		return nil, pkgerrors.Wrap(err, "yt-dlp")
	}
	return collectFiles(destDir)
}
