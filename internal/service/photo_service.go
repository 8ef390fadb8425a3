package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/storage"
	"alcyxob/fitness-sync/internal/syncengine"
)

// PhotosDomain is the sync domain name of progress photos.
const PhotosDomain = "photos"

// --- Error Definitions ---
var (
	ErrUnsupportedContentType = errors.New("unsupported content type for progress photo")
	ErrObjectKeyMismatch      = errors.New("object key does not belong to this photo")
	ErrPhotoNotFound          = errors.New("progress photo not found")
	ErrUploadURLError         = errors.New("failed to generate upload URL")
	ErrDownloadURLError       = errors.New("failed to generate download URL")
)

// UploadURLResponse structure for returning URL and object key
type UploadURLResponse struct {
	PhotoID   string `json:"photoId"`
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"` // The key client needs to report back on confirm
}

// PhotoUpload is what the client reports after uploading to the presigned URL.
type PhotoUpload struct {
	PhotoID     string    `json:"photoId"`
	ObjectKey   string    `json:"objectKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	TakenAt     time.Time `json:"takenAt"`
	Notes       string    `json:"notes"`
}

type PhotoService interface {
	Syncer
	RequestUploadURL(ctx context.Context, contentType string) (*UploadURLResponse, error)
	ConfirmUpload(ctx context.Context, upload PhotoUpload) (domain.PendingAction, error)
	DownloadURL(ctx context.Context, photoID string) (string, error)
	Remove(ctx context.Context, photoID string) (domain.PendingAction, error)
	Gallery() (domain.PhotoGallery, bool)
	Refresh(ctx context.Context) (domain.PhotoGallery, error)
	Subscribe(fn func(domain.PhotoGallery)) func()
}

type photoService struct {
	*syncengine.Engine[domain.PhotoGallery]
	files storage.FileStorage
	store remote.Store
	now   func() time.Time
}

// photoRemoval is the payload of photo.remove; the object key is kept so the push
// can delete the stored image after the row is gone.
type photoRemoval struct {
	ObjectKey string `json:"objectKey"`
}

// NewPhotoService creates the progress photo engine for ownerID.
func NewPhotoService(ownerID string, rs remote.Store, ls localstore.Store, files storage.FileStorage, opts syncengine.Options) PhotoService {
	dom := &photoDomain{store: rs, files: files, now: nowFunc(opts)}
	return &photoService{
		Engine: syncengine.New[domain.PhotoGallery](ownerID, dom, ls, opts),
		files:  files,
		store:  rs,
		now:    nowFunc(opts),
	}
}

// RequestUploadURL reserves a photo id and returns a presigned PUT URL for it.
func (s *photoService) RequestUploadURL(ctx context.Context, contentType string) (*UploadURLResponse, error) {
	if !storage.IsImageContentType(contentType) {
		return nil, ErrUnsupportedContentType
	}
	photoID := uuid.New().String()
	key := storage.PhotoObjectKey(s.Owner(), photoID, contentType)

	uploadURL, err := s.files.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		logging.Error().Err(err).Str("owner_id", s.Owner()).Msg("failed to presign photo upload")
		return nil, ErrUploadURLError
	}
	return &UploadURLResponse{PhotoID: photoID, UploadURL: uploadURL, ObjectKey: key}, nil
}

// ConfirmUpload records the photo locally. The push waits for the object to exist.
func (s *photoService) ConfirmUpload(ctx context.Context, up PhotoUpload) (domain.PendingAction, error) {
	if up.PhotoID == "" || up.ObjectKey == "" {
		return domain.PendingAction{}, ErrInvalidInput
	}
	if !storage.IsImageContentType(up.ContentType) {
		return domain.PendingAction{}, ErrUnsupportedContentType
	}
	if up.ObjectKey != storage.PhotoObjectKey(s.Owner(), up.PhotoID, up.ContentType) {
		return domain.PendingAction{}, ErrObjectKeyMismatch
	}
	if up.TakenAt.IsZero() {
		up.TakenAt = s.now()
	}

	photo := domain.ProgressPhoto{
		PhotoID:     up.PhotoID,
		OwnerID:     s.Owner(),
		ObjectKey:   up.ObjectKey,
		ContentType: strings.ToLower(up.ContentType),
		Size:        up.Size,
		TakenAt:     up.TakenAt.UTC(),
		Notes:       up.Notes,
	}
	return s.Record(ctx, domain.KindPhotoAdd, photo.PhotoID, photo)
}

func (s *photoService) DownloadURL(ctx context.Context, photoID string) (string, error) {
	photo, err := s.find(ctx, photoID)
	if err != nil {
		return "", err
	}
	u, err := s.files.GeneratePresignedDownloadURL(ctx, photo.ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		logging.Error().Err(err).Str("photo_id", photoID).Msg("failed to presign photo download")
		return "", ErrDownloadURLError
	}
	return u, nil
}

func (s *photoService) Remove(ctx context.Context, photoID string) (domain.PendingAction, error) {
	photo, err := s.find(ctx, photoID)
	if err != nil {
		return domain.PendingAction{}, err
	}
	return s.Record(ctx, domain.KindPhotoRemove, photoID, photoRemoval{ObjectKey: photo.ObjectKey})
}

func (s *photoService) Gallery() (domain.PhotoGallery, bool) {
	return s.State()
}

// find looks the photo up in the cached gallery, then in the remote store.
func (s *photoService) find(ctx context.Context, photoID string) (*domain.ProgressPhoto, error) {
	if photoID == "" {
		return nil, ErrInvalidInput
	}
	if g, ok := s.State(); ok {
		for i := range g.Photos {
			if g.Photos[i].PhotoID == photoID {
				return &g.Photos[i], nil
			}
		}
	}
	rows, err := s.store.Query(ctx, remote.TablePhotos, remote.Where(
		remote.Eq(remote.IDField, photoID),
		remote.Eq("owner_id", s.Owner()),
	))
	if err != nil {
		return nil, fmt.Errorf("look up photo: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrPhotoNotFound
	}
	p := rowToPhoto(rows[0])
	return &p, nil
}

type photoDomain struct {
	store remote.Store
	files storage.FileStorage
	now   func() time.Time
}

func (d *photoDomain) Name() string { return PhotosDomain }

func (d *photoDomain) Apply(g domain.PhotoGallery, a domain.PendingAction) (domain.PhotoGallery, error) {
	next := domain.PhotoGallery{
		Photos:      make([]domain.ProgressPhoto, 0, len(g.Photos)+1),
		Speculative: true,
		UpdatedAt:   d.now().UTC(),
	}

	switch a.Kind {
	case domain.KindPhotoAdd:
		var p domain.ProgressPhoto
		if err := a.DecodePayload(&p); err != nil {
			return g, err
		}
		for _, existing := range g.Photos {
			if existing.PhotoID != p.PhotoID {
				next.Photos = append(next.Photos, existing)
			}
		}
		next.Photos = append(next.Photos, p)
	case domain.KindPhotoRemove:
		for _, existing := range g.Photos {
			if existing.PhotoID != a.SubjectID {
				next.Photos = append(next.Photos, existing)
			}
		}
	default:
		return g, fmt.Errorf("photos: unexpected action kind %q", a.Kind)
	}

	next.SortPhotos()
	return next, nil
}

// Push writes photo metadata keyed by photo id. An add stays pending until the
// client's upload is visible in object storage.
func (d *photoDomain) Push(ctx context.Context, a domain.PendingAction) error {
	switch a.Kind {
	case domain.KindPhotoAdd:
		var p domain.ProgressPhoto
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		meta, err := d.files.GetObjectMetadata(ctx, p.ObjectKey)
		if err != nil {
			return fmt.Errorf("photo %s not uploaded yet: %w", p.PhotoID, err)
		}
		if meta.Size > 0 {
			p.Size = meta.Size
		}
		_, err = d.store.Insert(ctx, remote.TablePhotos, []remote.Row{photoToRow(p, d.now().UTC())})
		return err

	case domain.KindPhotoRemove:
		var p photoRemoval
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		if err := d.store.Delete(ctx, remote.TablePhotos, a.SubjectID); err != nil && !remote.IsNotFound(err) {
			return err
		}
		if p.ObjectKey == "" {
			return nil
		}
		return d.files.DeleteObject(ctx, p.ObjectKey)
	}
	return fmt.Errorf("photos: unexpected action kind %q", a.Kind)
}

func (d *photoDomain) Fetch(ctx context.Context, ownerID string) (domain.PhotoGallery, error) {
	rows, err := d.store.Query(ctx, remote.TablePhotos, remote.Where(remote.Eq("owner_id", ownerID)))
	if err != nil {
		return domain.PhotoGallery{}, err
	}
	g := domain.PhotoGallery{Photos: make([]domain.ProgressPhoto, 0, len(rows)), UpdatedAt: d.now().UTC()}
	for _, r := range rows {
		g.Photos = append(g.Photos, rowToPhoto(r))
	}
	g.SortPhotos()
	return g, nil
}

func photoToRow(p domain.ProgressPhoto, now time.Time) remote.Row {
	return remote.Row{
		remote.IDField: p.PhotoID,
		"owner_id":     p.OwnerID,
		"object_key":   p.ObjectKey,
		"content_type": p.ContentType,
		"size":         p.Size,
		"taken_at":     p.TakenAt.UTC(),
		"notes":        p.Notes,
		"created_at":   now,
	}
}

func rowToPhoto(r remote.Row) domain.ProgressPhoto {
	p := domain.ProgressPhoto{
		PhotoID:     r.ID(),
		OwnerID:     r.String("owner_id"),
		ObjectKey:   r.String("object_key"),
		ContentType: r.String("content_type"),
		Size:        r.Int64("size"),
		Notes:       r.String("notes"),
	}
	p.TakenAt, _ = r.Time("taken_at")
	return p
}
