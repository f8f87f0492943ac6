package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/deletion"
	"storefront-admin-service/internal/editor"
	"storefront-admin-service/internal/middleware"
	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

// OpenEditorRequest selects the editor mode
type OpenEditorRequest struct {
	Mode      editor.Mode      `json:"mode" binding:"required,oneof=create edit"`
	ProductID models.ProductID `json:"productId"`
}

// SubmitData is returned after a confirmed create or update
type SubmitData struct {
	Product models.Product `json:"product"`
	Session editor.View    `json:"session"`
}

type EditorHandler struct {
	stores        *store.Registry
	sessions      *editor.Manager
	deletions     *deletion.Registry
	maxImageBytes int64
	logger        *logrus.Entry
}

func NewEditorHandler(stores *store.Registry, sessions *editor.Manager, deletions *deletion.Registry, maxImageBytes int64, logger *logrus.Entry) *EditorHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = editor.DefaultMaxImageBytes
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EditorHandler{
		stores:        stores,
		sessions:      sessions,
		deletions:     deletions,
		maxImageBytes: maxImageBytes,
		logger:        logger.WithField("component", "editor_handler"),
	}
}

func owner(c *gin.Context) editor.Owner {
	return editor.Owner{
		TenantID: middleware.GetTenantID(c),
		UserID:   middleware.GetUserID(c),
	}
}

// OpenSession opens a product editor
// @Summary Open product editor
// @Description Opens a create editor with defaults or an edit editor seeded from the product
// @Tags Editor
// @Accept json
// @Produce json
// @Param request body OpenEditorRequest true "Editor mode"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/editor/sessions [post]
func (h *EditorHandler) OpenSession(c *gin.Context) {
	var req OpenEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	s, err := h.stores.ForTenant(ctx, middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	var session *editor.Session
	switch req.Mode {
	case editor.ModeEdit:
		if req.ProductID.IsZero() {
			respondError(c, editor.ErrNoProductID)
			return
		}
		product, ok := s.Lookup(req.ProductID)
		if !ok {
			respondError(c, store.ErrUnknownProduct)
			return
		}
		// editing is disabled while the product is being saved or deleted
		if s.IsPending(req.ProductID) {
			respondError(c, fmt.Errorf("%w: %s", store.ErrOperationInFlight, req.ProductID))
			return
		}
		if o := owner(c); h.deletions != nil && h.deletions.Holds(o.TenantID, o.UserID, req.ProductID) {
			respondError(c, fmt.Errorf("%w: %s", deletion.ErrAffordanceDisabled, req.ProductID))
			return
		}
		session, err = h.sessions.OpenEdit(ctx, owner(c), s, product)
	default:
		session, err = h.sessions.OpenCreate(ctx, owner(c), s)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    session.View(),
	})
}

// GetSession returns the editor's current view
// @Summary Get product editor
// @Tags Editor
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/editor/sessions/{sessionId} [get]
func (h *EditorHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(owner(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    session.View(),
	})
}

// UpdateFields applies form field edits
// @Summary Edit product editor fields
// @Description Values are kept as typed and only validated on submit
// @Tags Editor
// @Accept json
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Param fields body object true "Field values by name"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/editor/sessions/{sessionId} [patch]
func (h *EditorHandler) UpdateFields(c *gin.Context) {
	session, err := h.sessions.Get(owner(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := session.Apply(fields); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    session.View(),
	})
}

// AttachImage sets the image uploaded with the next submission
// @Summary Attach product image
// @Tags Editor
// @Accept multipart/form-data
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Param image formData file true "JPG or PNG image"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /admin/editor/sessions/{sessionId}/image [put]
func (h *EditorHandler) AttachImage(c *gin.Context) {
	session, err := h.sessions.Get(owner(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "IMAGE_REQUIRED", "Multipart field \"image\" is required")
		return
	}
	if fileHeader.Size > h.maxImageBytes {
		respondError(c, editor.ErrImageTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "INVALID_IMAGE", "Failed to read uploaded image")
		return
	}
	defer file.Close()

	// one byte over the limit is enough for the session to reject it
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		badRequest(c, "INVALID_IMAGE", "Failed to read uploaded image")
		return
	}

	err = session.Attach(models.Attachment{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    session.View(),
	})
}

// DetachImage drops the pending image upload
// @Summary Remove pending product image
// @Tags Editor
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Success 200 {object} models.SuccessResponse
// @Router /admin/editor/sessions/{sessionId}/image [delete]
func (h *EditorHandler) DetachImage(c *gin.Context) {
	session, err := h.sessions.Get(owner(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := session.Detach(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    session.View(),
	})
}

// SubmitSession validates the form and creates or updates the product
// @Summary Submit product editor
// @Description On success the editor closes and the product is in the collection
// @Tags Editor
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /admin/editor/sessions/{sessionId}/submit [post]
func (h *EditorHandler) SubmitSession(c *gin.Context) {
	o := owner(c)
	id := c.Param("sessionId")

	session, err := h.sessions.Get(o, id)
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.sessions.Submit(c.Request.Context(), o, id)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", id).Debug("editor submission rejected")
		respondError(c, err)
		return
	}

	msg := ""
	if s, err := h.stores.ForTenant(c.Request.Context(), o.TenantID); err == nil {
		if n := s.State().Notice; n != nil && n.Kind == store.NoticeSuccess {
			msg = n.Message
		}
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: SubmitData{
			Product: product,
			Session: session.View(),
		},
		Message: successMessage(msg),
	})
}

// CloseSession cancels the editor without saving
// @Summary Close product editor
// @Tags Editor
// @Produce json
// @Param sessionId path string true "Editor session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/editor/sessions/{sessionId} [delete]
func (h *EditorHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Cancel(owner(c), c.Param("sessionId")); err != nil {
		respondError(c, err)
		return
	}
	msg := "Editor closed"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &msg,
	})
}
