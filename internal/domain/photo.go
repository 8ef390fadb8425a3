package domain

import (
	"sort"
	"time"
)

// ProgressPhoto stores metadata about a progress photo. The image itself lives in object storage.
type ProgressPhoto struct {
	PhotoID     string    `json:"photoId"`
	OwnerID     string    `json:"ownerId"`
	ObjectKey   string    `json:"objectKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	TakenAt     time.Time `json:"takenAt"`
	Notes       string    `json:"notes,omitempty"`
}

// PhotoGallery is the cached view of an owner's progress photos, newest first.
type PhotoGallery struct {
	Photos      []ProgressPhoto `json:"photos"`
	Count       int             `json:"count"`
	Speculative bool            `json:"speculative"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SortPhotos orders photos newest first and refreshes Count.
func (g *PhotoGallery) SortPhotos() {
	sort.SliceStable(g.Photos, func(i, j int) bool {
		return g.Photos[i].TakenAt.After(g.Photos[j].TakenAt)
	})
	g.Count = len(g.Photos)
}
