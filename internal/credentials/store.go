// Package credentials manages the per-platform cookie artifacts the
// fetch collaborator needs for restricted content. Artifacts live as
// Netscape cookie files on disk, one per platform, and are validated on
// every read, not just on write.
package credentials

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/platforms"
)

// MinSize is the smallest plausible cookie file; anything below it is
// rejected as truncated.
const MinSize = 100

var cookieHeaders = []string{
	"# HTTP Cookie File",
	"# Netscape HTTP Cookie File",
}

var (
	// ErrTooSmall reports an artifact below the minimum size.
	ErrTooSmall = pkgerrors.New("cookie file is below the minimum size")

	// ErrBadHeader reports an artifact without the cookie-file header line.
	ErrBadHeader = pkgerrors.New("cookie file does not start with a recognized header")
)

// Store holds cookie artifacts in a single directory.
type Store struct {
	dir string
	log *logrus.Entry
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string, log *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(err, "create credential directory")
	}
	return &Store{dir: dir, log: log}, nil
}

// Path returns where the platform's artifact lives, whether or not it
// currently exists.
func (s *Store) Path(p *platforms.Platform) string {
	return filepath.Join(s.dir, p.CookieFile)
}

// Load returns the artifact path for p, but only if the stored file
// passes the validity predicate right now. A missing or invalid
// artifact reports absent; callers treat that as "never configured".
func (s *Store) Load(p *platforms.Platform) (string, bool) {
	path := s.Path(p)
	if err := s.Check(p); err != nil {
		return "", false
	}
	return path, true
}

// Check runs the validity predicate against the stored artifact for p.
func (s *Store) Check(p *platforms.Platform) error {
	content, err := os.ReadFile(s.Path(p))
	if err != nil {
		return pkgerrors.Wrapf(err, "read %s artifact", p.Name)
	}
	return Validate(content)
}

// Replace validates content and atomically swaps it in as p's artifact.
// On rejection the prior artifact, present or absent, is untouched and
// the returned error names the failed predicate.
func (s *Store) Replace(p *platforms.Platform, content []byte) error {
	if err := Validate(content); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, p.CookieFile+".*")
	if err != nil {
		return pkgerrors.Wrap(err, "create temp artifact")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return pkgerrors.Wrap(err, "write temp artifact")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrap(err, "close temp artifact")
	}
	if err := os.Rename(tmpName, s.Path(p)); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrap(err, "swap artifact")
	}

	s.log.WithField("platform", p.Name).Info("credential artifact replaced")
	return nil
}

// Validate is the sole gate on artifact content. It is intentionally
// lax: size and header-line shape only; correctness of the cookies is
// trusted externally.
func Validate(content []byte) error {
	if len(content) < MinSize {
		return ErrTooSmall
	}
	first, err := bufio.NewReader(bytes.NewReader(content)).ReadString('\n')
	if err != nil && first == "" {
		return ErrBadHeader
	}
	first = strings.TrimSpace(first)
	for _, header := range cookieHeaders {
		if strings.HasPrefix(first, header) {
			return nil
		}
	}
	return ErrBadHeader
}
