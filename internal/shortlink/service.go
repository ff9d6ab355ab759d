// Package shortlink produces the monetized unlock link for the ad-funded
// access flow. Monetization is strictly best effort: every failure path
// falls back to the plain deep link so the unlock flow is never blocked.
package shortlink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// UnlockToken is the deep-link parameter that, when redeemed via the
// start command, triggers a grant.
const UnlockToken = "unlock"

// Link is the unlock link pair. ShortURL equals DeepLink when the
// shortener was skipped or failed.
type Link struct {
	DeepLink string
	ShortURL string
}

type shortenResponse struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// Service wraps the external shortener API.
type Service struct {
	client *resty.Client
	apiURL string
	token  string
	log    *logrus.Entry
}

// New builds a Service. timeout bounds the single shortener attempt.
func New(apiURL, token string, timeout time.Duration, log *logrus.Entry) *Service {
	return &Service{
		client: resty.New().SetTimeout(timeout),
		apiURL: apiURL,
		token:  token,
		log:    log,
	}
}

// Generate builds the unlock deep link for botUsername and makes one
// attempt to shorten it. It never fails: any shortener problem degrades
// to the unshortened deep link.
func (s *Service) Generate(ctx context.Context, botUsername string) Link {
	deepLink := fmt.Sprintf("https://t.me/%s?start=%s", botUsername, UnlockToken)
	link := Link{DeepLink: deepLink, ShortURL: deepLink}
	if s.token == "" {
		return link
	}

	var body shortenResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api": s.token,
			"url": deepLink,
		}).
		SetResult(&body).
		Get(s.apiURL)
	if err != nil {
		s.log.WithError(err).Error("shortener request failed")
		return link
	}
	if !resp.IsSuccess() {
		s.log.WithField("status", resp.StatusCode()).Error("shortener returned non-success status")
		return link
	}
	if body.Status != "success" || body.ShortenedURL == "" {
		s.log.WithField("message", body.Message).Error("shortener API error")
		return link
	}

	link.ShortURL = body.ShortenedURL
	return link
}
