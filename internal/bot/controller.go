// Package bot dispatches inbound chat interactions to the access,
// credential and download subsystems. Handlers resolve every failure
// into at most one user-facing message; nothing escapes to the caller.
package bot

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/access"
	"github.com/goatanime/instagram-bot/internal/config"
	"github.com/goatanime/instagram-bot/internal/credentials"
	"github.com/goatanime/instagram-bot/internal/orchestrator"
	"github.com/goatanime/instagram-bot/internal/platforms"
	"github.com/goatanime/instagram-bot/internal/shortlink"
)

// Messenger is the slice of the messaging channel the controller needs.
type Messenger interface {
	Self() string
	SendText(chatID int64, text string) (messageID int, err error)
	SendTextWithButton(chatID int64, text, buttonLabel, buttonURL string) (messageID int, err error)
	NotifyAdmin(text string) error
}

// Deps is the explicitly constructed context threaded into every
// handler. There are no package-level singletons.
type Deps struct {
	Config    *config.Config
	Access    *access.Store
	Creds     *credentials.Store
	Links     *shortlink.Service
	Orch      *orchestrator.Orchestrator
	Messenger Messenger
	Log       *logrus.Entry
}

// Controller wires inbound events to the stores and services.
type Controller struct {
	deps Deps
}

// New builds the controller from its dependencies.
func New(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// HandleStart processes the start interaction. A valid unlock token in
// arg redeems a grant; otherwise the user is welcomed or prompted with
// an unlock link.
func (c *Controller) HandleStart(ctx context.Context, userID, chatID int64, arg string) {
	d := c.deps
	d.Log.WithField("user_id", userID).Info("start command")

	if arg == shortlink.UnlockToken {
		if err := d.Access.Grant(ctx, userID); err != nil {
			d.Log.WithField("user_id", userID).WithError(err).Error("grant failed")
			c.sendText(chatID, "❌ Could not activate access right now, please try again.")
			return
		}
		c.sendText(chatID, fmt.Sprintf(
			"🎉 *Premium Access Activated!*\n\nYour free access is valid for %d hours.",
			int(d.Config.AccessWindow.Hours())))
		return
	}

	if d.Access.IsValid(ctx, userID) {
		c.sendText(chatID, "🌟 *Welcome back!*\nYour access is active.")
		return
	}

	link := d.Links.Generate(ctx, d.Messenger.Self())
	c.sendUnlockPrompt(chatID,
		"🔒 *Premium Access Required*\nClick the button below to activate your free access.",
		"🔥 GET FREE ACCESS 🔥", link.ShortURL)
}

// HandleText processes a plain text message: the admin bypass, then
// classification, authorization, and task hand-off. The handler returns
// as soon as the task is admitted; it never waits for the download.
func (c *Controller) HandleText(ctx context.Context, userID, chatID int64, text string) {
	d := c.deps
	text = strings.TrimSpace(text)

	if c.isAdminBypass(userID, text) {
		if err := d.Access.Grant(ctx, userID); err != nil {
			d.Log.WithError(err).Error("admin bypass grant failed")
			return
		}
		c.sendText(chatID, "🔑 Admin access granted.")
		return
	}

	match, ok := platforms.Classify(text)
	if !ok {
		c.sendText(chatID, orchestrator.ReasonInvalidURL.UserMessage())
		return
	}

	if !d.Access.IsValid(ctx, userID) {
		link := d.Links.Generate(ctx, d.Messenger.Self())
		c.sendUnlockPrompt(chatID, orchestrator.ReasonUnauthorized.UserMessage(),
			"⏳ RENEW ACCESS ⏳", link.ShortURL)
		return
	}

	msgID, err := d.Messenger.SendText(chatID, "⏬ Downloading, please wait...")
	if err != nil {
		d.Log.WithField("user_id", userID).WithError(err).Error("failed to send status placeholder")
		return
	}
	d.Orch.Submit(userID, chatID, match, msgID)
}

// HandleDocument routes an uploaded credential artifact to the store.
// Only the configured admin may upload; everyone else is ignored.
func (c *Controller) HandleDocument(_ context.Context, userID, chatID int64, filename string, content []byte) {
	d := c.deps
	if !d.Config.AdminConfigured() || userID != d.Config.AdminID {
		return
	}

	if !strings.HasSuffix(filename, ".txt") {
		c.sendText(chatID, "Please upload the cookie file as a `.txt` document.")
		return
	}
	platform, ok := platforms.ByCookieFilename(filename)
	if !ok {
		c.sendText(chatID, "Unrecognized cookie file name. Expected one of: "+expectedCookieNames())
		return
	}

	if err := d.Creds.Replace(platform, content); err != nil {
		d.Log.WithField("platform", platform.Name).WithError(err).Warn("credential upload rejected")
		c.sendText(chatID, fmt.Sprintf("❌ *Invalid Cookies File* for %s: %v", platform.Name, err))
		return
	}
	c.sendText(chatID, fmt.Sprintf("✅ *%s cookies updated successfully!*", platform.Name))
}

// NotifyStartup tells the admin the bot is up and warns about every
// platform whose credential artifact is missing or invalid.
func (c *Controller) NotifyStartup(_ context.Context) {
	d := c.deps
	if !d.Config.AdminConfigured() {
		return
	}
	c.notifyAdmin("🔔 Bot is starting up...")
	for _, p := range platforms.All() {
		if err := d.Creds.Check(p); err != nil {
			c.notifyAdmin(fmt.Sprintf("⚠️ *Warning:* `%s` is missing or invalid.", p.CookieFile))
		}
	}
}

// isAdminBypass reports whether text is the admin's unlock secret. The
// secret is only honored from the configured admin identity and only
// when one is configured at all.
func (c *Controller) isAdminBypass(userID int64, text string) bool {
	d := c.deps
	if d.Config.AdminUnlockCode == "" || !d.Config.AdminConfigured() || userID != d.Config.AdminID {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(text), []byte(d.Config.AdminUnlockCode)) == 1
}

func (c *Controller) sendText(chatID int64, text string) {
	if _, err := c.deps.Messenger.SendText(chatID, text); err != nil {
		c.deps.Log.WithField("chat_id", chatID).WithError(err).Error("send failed")
	}
}

func (c *Controller) sendUnlockPrompt(chatID int64, text, buttonLabel, url string) {
	if _, err := c.deps.Messenger.SendTextWithButton(chatID, text, buttonLabel, url); err != nil {
		c.deps.Log.WithField("chat_id", chatID).WithError(err).Error("send failed")
	}
}

func (c *Controller) notifyAdmin(text string) {
	if err := c.deps.Messenger.NotifyAdmin(text); err != nil {
		c.deps.Log.WithError(err).Error("admin notification failed")
	}
}

func expectedCookieNames() string {
	names := make([]string, 0, len(platforms.All()))
	for _, p := range platforms.All() {
		names = append(names, "`"+p.CookieFile+"`")
	}
	return strings.Join(names, ", ")
}
