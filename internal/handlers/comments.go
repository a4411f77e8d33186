package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pubshark/backend/internal/models"
)

type CommentHandler struct {
	comments CommentService
}

func NewCommentHandler(comments CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// GetComments returns a page of comments for an article, newest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	page, err := h.comments.List(c.Request.Context(), currentUser(c), id, queryInt(c, "page"), queryInt(c, "pageSize"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateComment creates a new comment on an article (PROTECTED)
func (h *CommentHandler) CreateComment(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Comment is required")
		return
	}

	comment, err := h.comments.Post(c.Request.Context(), currentUser(c), id, input.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment edits a comment (PROTECTED - owner only)
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	id, ok := paramID(c, "commentId", "comment")
	if !ok {
		return
	}
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Comment is required")
		return
	}

	comment, err := h.comments.Edit(c.Request.Context(), currentUser(c), id, input.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment removes a comment (PROTECTED - owner or admin)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "commentId", "comment")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// LikeComment toggles a like; it replaces the caller's dislike if present
func (h *CommentHandler) LikeComment(c *gin.Context) {
	id, ok := paramID(c, "commentId", "comment")
	if !ok {
		return
	}
	comment, err := h.comments.ToggleLike(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DislikeComment toggles a dislike; it replaces the caller's like if present
func (h *CommentHandler) DislikeComment(c *gin.Context) {
	id, ok := paramID(c, "commentId", "comment")
	if !ok {
		return
	}
	comment, err := h.comments.ToggleDislike(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
