// Package platforms is the single source of truth for which URLs the bot
// accepts. Each supported platform carries its own URL grammar, credential
// file name and fetch option set; orchestration code never inspects URLs
// itself.
package platforms

import (
	"regexp"
	"strings"
)

// Platform describes one supported media platform. Instances are the
// closed set declared in this package; resolve once at classification
// time and thread the pointer through the task.
type Platform struct {
	// Name is the stable identifier (also used in logs and messages).
	Name string

	// CookieFile is the credential artifact file name for this platform.
	CookieFile string

	// FetchFormat is the yt-dlp format selector used for this platform.
	FetchFormat string

	patterns []*regexp.Regexp
}

var (
	Instagram = &Platform{
		Name:        "instagram",
		CookieFile:  "instagram_cookies.txt",
		FetchFormat: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		patterns: []*regexp.Regexp{
			// Posts, reels, IGTV, stories and tag pages.
			regexp.MustCompile(`^https?://(?:www\.)?instagram\.com/(?:p|reel|reels|tv|stories|explore/tags)/[A-Za-z0-9_.\-]+(?:/[0-9]+)?/?$`),
			// Profile root.
			regexp.MustCompile(`^https?://(?:www\.)?instagram\.com/[A-Za-z0-9_.]+/?$`),
		},
	}

	TikTok = &Platform{
		Name:        "tiktok",
		CookieFile:  "tiktok_cookies.txt",
		FetchFormat: "best[ext=mp4]/best",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^https?://(?:www\.)?tiktok\.com/@[A-Za-z0-9_.\-]+/video/[0-9]+/?$`),
			regexp.MustCompile(`^https?://(?:vm|vt)\.tiktok\.com/[A-Za-z0-9]+/?$`),
		},
	}

	YouTube = &Platform{
		Name:        "youtube",
		CookieFile:  "youtube_cookies.txt",
		FetchFormat: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		patterns: []*regexp.Regexp{
			// Shorts only; the video ID is always 11 characters.
			regexp.MustCompile(`^https?://(?:www\.|m\.)?youtube\.com/shorts/[A-Za-z0-9_\-]{11}/?$`),
		},
	}
)

// All returns every supported platform.
func All() []*Platform {
	return []*Platform{Instagram, TikTok, YouTube}
}

// ByCookieFilename resolves an uploaded credential file name to its
// platform. It accepts the exact artifact name only.
func ByCookieFilename(name string) (*Platform, bool) {
	for _, p := range All() {
		if name == p.CookieFile {
			return p, true
		}
	}
	return nil, false
}

// Match is the result of classifying a piece of text.
type Match struct {
	Platform      *Platform
	NormalizedURL string
}

// Classify maps raw text to a supported platform. The grammars are
// anchored: a supported URL embedded in longer text does not match.
func Classify(text string) (Match, bool) {
	candidate := strings.TrimSpace(text)
	if strings.ContainsAny(candidate, " \t\n\r") {
		return Match{}, false
	}
	bare := stripQuery(candidate)
	for _, p := range All() {
		for _, re := range p.patterns {
			if re.MatchString(bare) {
				return Match{Platform: p, NormalizedURL: normalize(bare)}, true
			}
		}
	}
	return Match{}, false
}

// stripQuery drops the query string and fragment; share links carry
// tracking parameters the extractor does not need.
func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

func normalize(url string) string {
	return strings.TrimSuffix(url, "/")
}
