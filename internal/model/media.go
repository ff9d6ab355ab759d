package model

import (
	"path/filepath"
	"sort"
	"strings"
)

// MediaKind classifies a fetched file for delivery purposes
type MediaKind int

const (
	MediaImage MediaKind = iota
	MediaVideo
	MediaOther
)

// AlbumLimit is the maximum number of items the transport accepts in one
// grouped media send.
const AlbumLimit = 10

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	videoExtensions = []string{".mp4", ".mov", ".webm"}
)

// MediaFile is a single file produced by the fetch collaborator.
type MediaFile struct {
	Path string
	Size int64
}

// Kind classifies the file by extension.
func (f MediaFile) Kind() MediaKind {
	ext := strings.ToLower(filepath.Ext(f.Path))
	for _, e := range imageExtensions {
		if ext == e {
			return MediaImage
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return MediaVideo
		}
	}
	return MediaOther
}

// OrderForDelivery returns the deliverable files in their send order:
// images first, then videos, each group sorted by filename so the order
// is deterministic. Files of unrecognized kinds are dropped.
func OrderForDelivery(files []MediaFile) []MediaFile {
	var images, videos []MediaFile
	for _, f := range files {
		switch f.Kind() {
		case MediaImage:
			images = append(images, f)
		case MediaVideo:
			videos = append(videos, f)
		}
	}

	byName := func(group []MediaFile) {
		sort.Slice(group, func(i, j int) bool {
			return filepath.Base(group[i].Path) < filepath.Base(group[j].Path)
		})
	}
	byName(images)
	byName(videos)

	return append(images, videos...)
}

// ChunkMedia splits files into batches of at most size items.
func ChunkMedia(files []MediaFile, size int) [][]MediaFile {
	if size <= 0 || len(files) == 0 {
		return nil
	}
	var batches [][]MediaFile
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[start:end])
	}
	return batches
}
