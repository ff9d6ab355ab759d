// Package orchestrator owns the download task lifecycle: admission,
// background execution, result delivery and unconditional cleanup.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/credentials"
	"github.com/goatanime/instagram-bot/internal/fetch"
	"github.com/goatanime/instagram-bot/internal/model"
	"github.com/goatanime/instagram-bot/internal/platforms"
)

// AlbumItem is one entry of a grouped media send.
type AlbumItem struct {
	Path    string
	Video   bool
	Caption string
}

// Deliverer is the slice of the messaging channel the orchestrator
// needs to report task outcomes and deliver media.
type Deliverer interface {
	Self() string
	EditText(chatID int64, messageID int, text string) error
	SendPhoto(chatID int64, path, caption string) error
	SendVideo(chatID int64, path, caption string) error
	SendAlbum(chatID int64, items []AlbumItem) error
	NotifyAdmin(text string) error
}

// entry pairs a task with the execution context Submit captured for it.
type entry struct {
	task        *model.DownloadTask
	platform    *platforms.Platform
	statusMsgID int
	started     bool
	finished    bool
}

// Orchestrator schedules admitted tasks onto a bounded set of workers.
type Orchestrator struct {
	creds       *credentials.Store
	fetcher     fetch.Fetcher
	messenger   Deliverer
	downloadDir string
	maxParallel int
	log         *logrus.Entry

	mu     sync.Mutex
	tasks  map[string]*entry
	active int
}

// New creates an orchestrator running at most maxParallel fetches at a
// time. Working directories are created under downloadDir.
func New(creds *credentials.Store, fetcher fetch.Fetcher, messenger Deliverer, downloadDir string, maxParallel int, log *logrus.Entry) *Orchestrator {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Orchestrator{
		creds:       creds,
		fetcher:     fetcher,
		messenger:   messenger,
		downloadDir: downloadDir,
		maxParallel: maxParallel,
		log:         log,
		tasks:       make(map[string]*entry),
	}
}

// Submit admits a classified, authorized request as a new task. The
// call returns immediately; execution happens on a background worker
// and statusMsgID is edited exactly once with the terminal outcome.
// Tasks beyond the parallelism limit wait queued until a slot frees.
func (o *Orchestrator) Submit(userID, chatID int64, m platforms.Match, statusMsgID int) *model.DownloadTask {
	task := &model.DownloadTask{
		ID:         uuid.NewString(),
		UserID:     userID,
		ChatID:     chatID,
		URL:        m.NormalizedURL,
		Platform:   m.Platform.Name,
		State:      model.TaskStateQueued,
		EnqueuedAt: time.Now(),
		Done:       make(chan struct{}),
	}
	e := &entry{task: task, platform: m.Platform, statusMsgID: statusMsgID}

	o.mu.Lock()
	o.tasks[task.ID] = e
	start := o.active < o.maxParallel
	if start {
		// Claim the slot before releasing the lock so concurrent
		// submissions cannot oversubscribe the pool.
		o.active++
		e.started = true
	}
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"user_id":  userID,
		"platform": task.Platform,
	}).Info("download task admitted")

	if start {
		go o.runTask(e)
	}
	return task
}

// Task returns a task by ID while it is alive.
func (o *Orchestrator) Task(id string) (*model.DownloadTask, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.tasks[id]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// runTask drives one task from Running to a terminal state. The defer
// chain owns the non-negotiable invariants: the working directory is
// removed and Done is closed on every exit path, panics included.
func (o *Orchestrator) runTask(e *entry) {
	t := e.task

	o.mu.Lock()
	t.State = model.TaskStateRunning
	t.StartedAt = time.Now()
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("task_id", t.ID).Errorf("task panicked: %v", r)
			o.finish(e, model.TaskStateFailed, ReasonTransientFetch, fmt.Errorf("panic: %v", r))
		}
		o.removeWorkDir(t)
		o.mu.Lock()
		o.active--
		delete(o.tasks, t.ID)
		o.mu.Unlock()
		close(t.Done)
		o.startNextQueued()
	}()

	workDir, err := os.MkdirTemp(o.downloadDir, fmt.Sprintf("dl_%d_", t.UserID))
	if err != nil {
		o.finish(e, model.TaskStateFailed, ReasonTransientFetch, err)
		return
	}
	o.mu.Lock()
	t.WorkDir = workDir
	o.mu.Unlock()

	cookiePath, _ := o.creds.Load(e.platform)

	// The fetch may block for an unbounded duration; no cancellation is
	// modeled at this level.
	files, err := o.fetcher.Fetch(context.Background(), t.URL, cookiePath, e.platform, workDir)
	if err != nil {
		o.finish(e, model.TaskStateFailed, ClassifyFetchError(err), err)
		return
	}

	o.mu.Lock()
	t.Files = files
	o.mu.Unlock()

	ordered := model.OrderForDelivery(files)
	if len(ordered) == 0 {
		o.finish(e, model.TaskStateFailed, ReasonUnsupportedContent, fmt.Errorf("no deliverable media among %d files", len(files)))
		return
	}

	if err := o.deliver(t.ChatID, ordered); err != nil {
		o.finish(e, model.TaskStateFailed, ClassifyDeliveryError(err), err)
		return
	}
	o.finish(e, model.TaskStateSucceeded, "", nil)
}

// deliver sends the ordered media: a single file directly, anything
// more as grouped batches within the transport's album limit.
func (o *Orchestrator) deliver(chatID int64, ordered []model.MediaFile) error {
	caption := fmt.Sprintf("Downloaded via @%s", o.messenger.Self())

	if len(ordered) == 1 {
		f := ordered[0]
		if f.Kind() == model.MediaVideo {
			return o.messenger.SendVideo(chatID, f.Path, caption)
		}
		return o.messenger.SendPhoto(chatID, f.Path, caption)
	}

	first := true
	for _, batch := range model.ChunkMedia(ordered, model.AlbumLimit) {
		items := make([]AlbumItem, 0, len(batch))
		for _, f := range batch {
			item := AlbumItem{Path: f.Path, Video: f.Kind() == model.MediaVideo}
			if first {
				item.Caption = caption
				first = false
			}
			items = append(items, item)
		}
		if err := o.messenger.SendAlbum(chatID, items); err != nil {
			return err
		}
	}
	return nil
}

// finish records the terminal transition and repurposes the placeholder
// status message as the single terminal notice. It is idempotent so the
// panic path cannot produce a duplicate edit.
func (o *Orchestrator) finish(e *entry, state model.TaskState, reason Reason, taskErr error) {
	o.mu.Lock()
	if e.finished {
		o.mu.Unlock()
		return
	}
	e.finished = true
	t := e.task
	t.State = state
	t.FinishedAt = time.Now()
	if taskErr != nil {
		t.LastError = taskErr.Error()
	}
	fileCount := len(model.OrderForDelivery(t.Files))
	o.mu.Unlock()

	text := fmt.Sprintf("✅ *Done!* Sent %d media file(s).", fileCount)
	if state == model.TaskStateFailed {
		text = reason.UserMessage()
		o.log.WithFields(logrus.Fields{
			"task_id": t.ID,
			"user_id": t.UserID,
			"reason":  string(reason),
		}).WithError(taskErr).Warn("download task failed")
	}

	if err := o.messenger.EditText(t.ChatID, e.statusMsgID, text); err != nil {
		o.log.WithField("task_id", t.ID).WithError(err).Error("failed to edit status message")
	}

	if state == model.TaskStateFailed && reason.NotifiesAdmin() {
		note := fmt.Sprintf("⚠️ Cookies might be invalid or insufficient. User %d triggered an error on %s.\n\n`%v`", t.UserID, t.Platform, taskErr)
		if err := o.messenger.NotifyAdmin(note); err != nil {
			o.log.WithError(err).Error("failed to notify admin")
		}
	}
}

// removeWorkDir reclaims the task's working directory. This runs on
// every terminal transition without exception.
func (o *Orchestrator) removeWorkDir(t *model.DownloadTask) {
	if t.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(t.WorkDir); err != nil {
		o.log.WithField("task_id", t.ID).WithError(err).Error("failed to remove working directory")
	}
}

// startNextQueued starts the oldest queued task if a slot is free.
func (o *Orchestrator) startNextQueued() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active >= o.maxParallel {
		return
	}
	var next *entry
	for _, e := range o.tasks {
		if e.started {
			continue
		}
		if next == nil || e.task.EnqueuedAt.Before(next.task.EnqueuedAt) {
			next = e
		}
	}
	if next != nil {
		next.started = true
		o.active++
		go o.runTask(next)
	}
}
