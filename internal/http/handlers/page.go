package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/http/response"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/services"
)

const maxPageImageBytes = 32 << 20

type PageHandler struct {
	log   *logger.Logger
	pages services.PageService
}

func NewPageHandler(log *logger.Logger, pages services.PageService) *PageHandler {
	return &PageHandler{
		log:   log.With("handler", "PageHandler"),
		pages: pages,
	}
}

func pageNumParam(c *gin.Context) (int, bool) {
	num, err := strconv.Atoi(c.Param("num"))
	if err != nil || num < 1 {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return 0, false
	}
	return num, true
}

// UploadPage accepts either a multipart form with an "image" file or a raw
// image body.
func (h *PageHandler) UploadPage(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}

	var image []byte
	if file, err := c.FormFile("image"); err == nil {
		if file.Size > maxPageImageBytes {
			response.RespondError(c, http.StatusBadRequest, "validation_error", nil)
			return
		}
		f, err := file.Open()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		defer f.Close()
		image, err = io.ReadAll(io.LimitReader(f, maxPageImageBytes))
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
	} else {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPageImageBytes))
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		image = raw
	}

	result, err := h.pages.Upload(c.Request.Context(), bookID, image)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, result)
}

func (h *PageHandler) GetPage(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	num, ok := pageNumParam(c)
	if !ok {
		return
	}
	detail, err := h.pages.Get(c.Request.Context(), bookID, num)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// ReExtractPage retries text extraction from the stored image, for pages
// whose extraction failed at upload time.
func (h *PageHandler) ReExtractPage(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	num, ok := pageNumParam(c)
	if !ok {
		return
	}
	result, err := h.pages.ReExtract(c.Request.Context(), bookID, num)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *PageHandler) ApprovePage(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	num, ok := pageNumParam(c)
	if !ok {
		return
	}
	result, err := h.pages.Approve(c.Request.Context(), bookID, num)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *PageHandler) DeletePage(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	num, ok := pageNumParam(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.pages.Delete(c.Request.Context(), bookID, num, force); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PageHandler) MarkPagesComplete(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	book, err := h.pages.MarkComplete(c.Request.Context(), bookID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, book)
}
