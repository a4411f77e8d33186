package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/service"
)

type ArticleHandler struct {
	articles ArticleService
}

func NewArticleHandler(articles ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

// GetArticles lists articles. Anonymous callers only see published ones.
func (h *ArticleHandler) GetArticles(c *gin.Context) {
	page, err := h.articles.List(c.Request.Context(), currentUser(c), listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetMyArticles is the writer dashboard: every article by the caller, any
// status.
func (h *ArticleHandler) GetMyArticles(c *gin.Context) {
	q := listQuery(c)
	q.Author = currentUser(c).ID.String()
	page, err := h.articles.List(c.Request.Context(), currentUser(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetArticle returns one article with its first page of comments
func (h *ArticleHandler) GetArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	detail, err := h.articles.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateArticle submits a new article for review (PROTECTED - writers and admins)
func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	var input service.SubmitArticleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	article, err := h.articles.Submit(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

// UpdateArticle edits fields without changing status (PROTECTED - admins)
func (h *ArticleHandler) UpdateArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	var edits service.ArticleEdits
	if err := c.ShouldBindJSON(&edits); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	article, err := h.articles.Edit(c.Request.Context(), currentUser(c), id, edits)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// ReviewArticle publishes, rejects or requests revision (PROTECTED - admins)
func (h *ArticleHandler) ReviewArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	var input models.ReviewRequest
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}

	article, err := h.articles.Review(c.Request.Context(), currentUser(c), id, input.Status, input.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// ResubmitArticle sends a rejected or revision article back to review.
// The body is optional and may carry edits.
func (h *ArticleHandler) ResubmitArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	var edits *service.ArticleEdits
	var input service.ArticleEdits
	switch err := c.ShouldBindJSON(&input); {
	case err == nil:
		edits = &input
	case !errors.Is(err, io.EOF):
		badRequest(c, "Invalid request body")
		return
	}

	article, err := h.articles.Resubmit(c.Request.Context(), currentUser(c), id, edits)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// DeleteArticle removes an article and its comments (PROTECTED - admins)
func (h *ArticleHandler) DeleteArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	if err := h.articles.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article deleted successfully"})
}

// LikeArticle toggles the caller's like
func (h *ArticleHandler) LikeArticle(c *gin.Context) {
	id, ok := paramID(c, "id", "article")
	if !ok {
		return
	}
	state, err := h.articles.ToggleLike(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func listQuery(c *gin.Context) service.ListQuery {
	return service.ListQuery{
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		College:   c.Query("college"),
		Status:    c.Query("status"),
		Author:    c.Query("author"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "pageSize"),
	}
}
