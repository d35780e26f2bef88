package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/domain"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/http/response"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/services"
)

type BookHandler struct {
	log   *logger.Logger
	books services.BookService
}

func NewBookHandler(log *logger.Logger, books services.BookService) *BookHandler {
	return &BookHandler{
		log:   log.With("handler", "BookHandler"),
		books: books,
	}
}

func bookIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *BookHandler) CreateBook(c *gin.Context) {
	var in services.CreateBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	// attribution comes from the header, never the body
	in.CreatedBy = c.GetHeader("X-Actor-ID")
	book, err := h.books.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, book)
}

func (h *BookHandler) ListBooks(c *gin.Context) {
	filter := repos.BookListFilter{
		Country: c.Query("country"),
		Board:   c.Query("board"),
		Subject: c.Query("subject"),
		Status:  domain.BookStatus(c.Query("status")),
	}
	if raw := c.Query("grade"); raw != "" {
		grade, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		filter.Grade = grade
	}

	books, total, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"books": books, "total": total})
}

func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	book, err := h.books.GetDetail(c.Request.Context(), bookID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, book)
}

func (h *BookHandler) SetStatus(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Status domain.BookStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	book, err := h.books.SetStatus(c.Request.Context(), bookID, body.Status)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, book)
}

func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.books.Delete(c.Request.Context(), bookID, force); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
