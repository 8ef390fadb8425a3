package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/service"
)

type PhotoHandler struct{}

func NewPhotoHandler() *PhotoHandler { return &PhotoHandler{} }

// --- DTOs ---

type UploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmPhotoRequest struct {
	PhotoID     string    `json:"photoId" binding:"required"`
	ObjectKey   string    `json:"objectKey" binding:"required"`
	ContentType string    `json:"contentType" binding:"required"`
	Size        int64     `json:"size" binding:"min=0"`
	TakenAt     time.Time `json:"takenAt"`
	Notes       string    `json:"notes"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

// RequestUploadURL godoc
// @Summary Get a presigned URL to upload a progress photo
// @Tags Photos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UploadURLRequest true "Image content type"
// @Success 200 {object} service.UploadURLResponse
// @Failure 400 {object} gin.H "Unsupported content type"
// @Router /photos/upload-url [post]
func (h *PhotoHandler) RequestUploadURL(c *gin.Context) {
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	resp, err := s.Photos.RequestUploadURL(c.Request.Context(), req.ContentType)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmUpload godoc
// @Summary Record an uploaded progress photo
// @Description The photo appears in the gallery immediately and syncs once the upload is visible in storage.
// @Tags Photos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param photo body ConfirmPhotoRequest true "Uploaded photo"
// @Success 202 {object} domain.PendingAction
// @Router /photos [post]
func (h *PhotoHandler) ConfirmUpload(c *gin.Context) {
	var req ConfirmPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	action, err := s.Photos.ConfirmUpload(c.Request.Context(), service.PhotoUpload{
		PhotoID:     req.PhotoID,
		ObjectKey:   req.ObjectKey,
		ContentType: req.ContentType,
		Size:        req.Size,
		TakenAt:     req.TakenAt,
		Notes:       req.Notes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, action)
}

// GetPhotos godoc
// @Summary Progress photo gallery
// @Tags Photos
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.PhotoGallery
// @Router /photos [get]
func (h *PhotoHandler) GetPhotos(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	g, ok := s.Photos.Gallery()
	if !ok {
		var err error
		if g, err = s.Photos.Refresh(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, domain.PhotoGallery{Photos: []domain.ProgressPhoto{}})
			return
		}
	}
	c.JSON(http.StatusOK, g)
}

// GetDownloadURL godoc
// @Summary Get a presigned URL to view a progress photo
// @Tags Photos
// @Produce json
// @Security BearerAuth
// @Param photoId path string true "Photo ID"
// @Success 200 {object} DownloadURLResponse
// @Failure 404 {object} gin.H "Photo not found"
// @Router /photos/{photoId}/url [get]
func (h *PhotoHandler) GetDownloadURL(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	u, err := s.Photos.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DownloadURLResponse{URL: u})
}

// DeletePhoto godoc
// @Summary Remove a progress photo
// @Tags Photos
// @Produce json
// @Security BearerAuth
// @Param photoId path string true "Photo ID"
// @Success 202 {object} domain.PendingAction
// @Failure 404 {object} gin.H "Photo not found"
// @Router /photos/{photoId} [delete]
func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	action, err := s.Photos.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, action)
}
