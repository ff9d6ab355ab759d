package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/credentials"
	"github.com/goatanime/instagram-bot/internal/fetch"
	"github.com/goatanime/instagram-bot/internal/model"
	"github.com/goatanime/instagram-bot/internal/platforms"
)

type fakeFetcher struct {
	fileNames []string
	err       error

	mu         sync.Mutex
	gotCookie  string
	gotURL     string
	fetchCount int
}

func (f *fakeFetcher) Fetch(_ context.Context, url, cookiePath string, _ *platforms.Platform, destDir string) ([]model.MediaFile, error) {
	f.mu.Lock()
	f.gotCookie = cookiePath
	f.gotURL = url
	f.fetchCount++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	var out []model.MediaFile
	for _, name := range f.fileNames {
		path := filepath.Join(destDir, name)
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, model.MediaFile{Path: path, Size: 5})
	}
	if len(out) == 0 {
		return nil, fetch.ErrNoFiles
	}
	return out, nil
}

type fakeDeliverer struct {
	albumErr error
	videoErr error

	mu         sync.Mutex
	edits      []string
	albums     [][]AlbumItem
	photos     []string
	videos     []string
	adminNotes []string
}

func (d *fakeDeliverer) Self() string { return "testbot" }

func (d *fakeDeliverer) EditText(_ int64, _ int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edits = append(d.edits, text)
	return nil
}

func (d *fakeDeliverer) SendPhoto(_ int64, path, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.photos = append(d.photos, path)
	return nil
}

func (d *fakeDeliverer) SendVideo(_ int64, path, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.videoErr != nil {
		return d.videoErr
	}
	d.videos = append(d.videos, path)
	return nil
}

func (d *fakeDeliverer) SendAlbum(_ int64, items []AlbumItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.albumErr != nil {
		return d.albumErr
	}
	d.albums = append(d.albums, items)
	return nil
}

func (d *fakeDeliverer) NotifyAdmin(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adminNotes = append(d.adminNotes, text)
	return nil
}

func newTestOrchestrator(t *testing.T, fetcher fetch.Fetcher, deliverer Deliverer) *Orchestrator {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	creds, err := credentials.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("credentials.NewStore() returned error: %v", err)
	}
	return New(creds, fetcher, deliverer, t.TempDir(), 2, log)
}

func instagramMatch(t *testing.T) platforms.Match {
	t.Helper()
	m, ok := platforms.Classify("https://www.instagram.com/p/Cxyz123_ab/")
	if !ok {
		t.Fatal("classifier rejected the fixture URL")
	}
	return m
}

func waitDone(t *testing.T, task *model.DownloadTask) {
	t.Helper()
	select {
	case <-task.Done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not reach a terminal state in time")
	}
}

func TestSubmit_SuccessDeliversImagesBeforeVideos(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"b_clip.mp4", "z_photo.jpg", "a_photo.jpg"}}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	if task.State != model.TaskStateSucceeded {
		t.Fatalf("task state = %s, expected Succeeded (last error: %s)", task.State, task.LastError)
	}

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()

	if len(deliverer.albums) != 1 {
		t.Fatalf("albums sent = %d, expected 1 batch of 3", len(deliverer.albums))
	}
	batch := deliverer.albums[0]
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, expected 3", len(batch))
	}
	names := []string{filepath.Base(batch[0].Path), filepath.Base(batch[1].Path), filepath.Base(batch[2].Path)}
	expected := []string{"a_photo.jpg", "z_photo.jpg", "b_clip.mp4"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("batch[%d] = %s, expected %s", i, names[i], expected[i])
		}
	}
	if !batch[2].Video || batch[0].Video {
		t.Error("album item kinds are wrong, expected photos then video")
	}
	if batch[0].Caption == "" {
		t.Error("first album item has no caption")
	}

	if len(deliverer.edits) != 1 {
		t.Errorf("status message edited %d times, expected exactly 1", len(deliverer.edits))
	}
	if len(deliverer.adminNotes) != 0 {
		t.Errorf("admin notified on success: %v", deliverer.adminNotes)
	}
}

func TestSubmit_SingleVideoSentDirectly(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"clip.mp4"}}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.videos) != 1 {
		t.Fatalf("videos sent = %d, expected 1", len(deliverer.videos))
	}
	if len(deliverer.albums) != 0 {
		t.Errorf("albums sent = %d, expected 0 for a single file", len(deliverer.albums))
	}
}

func TestSubmit_WorkDirRemovedOnSuccess(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"clip.mp4"}}
	orch := newTestOrchestrator(t, fetcher, &fakeDeliverer{})

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	if task.WorkDir == "" {
		t.Fatal("task has no recorded working directory")
	}
	if _, err := os.Stat(task.WorkDir); !os.IsNotExist(err) {
		t.Errorf("working directory %s still exists after success", task.WorkDir)
	}
}

func TestSubmit_WorkDirRemovedOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection reset")}
	orch := newTestOrchestrator(t, fetcher, &fakeDeliverer{})

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	if task.State != model.TaskStateFailed {
		t.Fatalf("task state = %s, expected Failed", task.State)
	}
	if _, err := os.Stat(task.WorkDir); !os.IsNotExist(err) {
		t.Errorf("working directory %s still exists after failure", task.WorkDir)
	}
}

func TestSubmit_WorkDirRemovedWhenDeliveryFails(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"a.jpg", "b.mp4"}}
	deliverer := &fakeDeliverer{albumErr: errors.New("Bad Gateway")}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	if task.State != model.TaskStateFailed {
		t.Fatalf("task state = %s, expected Failed after delivery error", task.State)
	}
	if _, err := os.Stat(task.WorkDir); !os.IsNotExist(err) {
		t.Errorf("working directory %s still exists after delivery failure", task.WorkDir)
	}

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.edits) != 1 {
		t.Fatalf("status message edited %d times, expected exactly 1", len(deliverer.edits))
	}
	if deliverer.edits[0] != ReasonDeliveryFailure.UserMessage() {
		t.Errorf("terminal edit = %q, expected the delivery-failure message", deliverer.edits[0])
	}
}

func TestSubmit_RateLimitDoesNotNotifyAdmin(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("HTTP Error 429: Too Many Requests")}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.edits) != 1 || deliverer.edits[0] != ReasonRateLimited.UserMessage() {
		t.Errorf("edits = %v, expected one rate-limited message", deliverer.edits)
	}
	if len(deliverer.adminNotes) != 0 {
		t.Errorf("admin notified for a rate-limit failure: %v", deliverer.adminNotes)
	}
}

func TestSubmit_CredentialFailureNotifiesAdmin(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("login required to view this content")}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.adminNotes) != 1 {
		t.Fatalf("admin notes = %d, expected exactly 1 for a credential failure", len(deliverer.adminNotes))
	}
}

func TestSubmit_NoMediaFound(t *testing.T) {
	fetcher := &fakeFetcher{}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	task := orch.Submit(42, 100, instagramMatch(t), 7)
	waitDone(t, task)

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.edits) != 1 || deliverer.edits[0] != ReasonNoMediaFound.UserMessage() {
		t.Errorf("edits = %v, expected one no-media message", deliverer.edits)
	}
}

func TestSubmit_QueuedTasksRunAfterSlotsFree(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"clip.mp4"}}
	deliverer := &fakeDeliverer{}
	orch := newTestOrchestrator(t, fetcher, deliverer)

	m := instagramMatch(t)
	tasks := make([]*model.DownloadTask, 0, 5)
	for i := 0; i < 5; i++ {
		tasks = append(tasks, orch.Submit(int64(42+i), 100, m, 7))
	}
	for _, task := range tasks {
		waitDone(t, task)
	}

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	if fetcher.fetchCount != 5 {
		t.Errorf("fetch ran %d times, expected 5 (one per task, queue drained)", fetcher.fetchCount)
	}
}

func TestSubmit_TwoTasksUseIndependentWorkDirs(t *testing.T) {
	fetcher := &fakeFetcher{fileNames: []string{"clip.mp4"}}
	orch := newTestOrchestrator(t, fetcher, &fakeDeliverer{})

	m := instagramMatch(t)
	a := orch.Submit(42, 100, m, 7)
	b := orch.Submit(42, 100, m, 8)
	waitDone(t, a)
	waitDone(t, b)

	if a.WorkDir == b.WorkDir {
		t.Errorf("both tasks used the same working directory %s", a.WorkDir)
	}
}
