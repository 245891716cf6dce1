package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopagent/backend/internal/domain"
	"github.com/shopagent/backend/internal/usecase"
	"go.uber.org/zap"
)

// maxQueryLength bounds the sanitized search query.
const maxQueryLength = 500

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search    *usecase.SearchService
	auth      *usecase.AuthService
	cache     domain.Cache
	searchTTL time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(search *usecase.SearchService, auth *usecase.AuthService, cache domain.Cache, searchTTL time.Duration, logger *zap.Logger) *Handler {
	if searchTTL <= 0 {
		searchTTL = time.Hour
	}
	return &Handler{
		search:    search,
		auth:      auth,
		cache:     cache,
		searchTTL: searchTTL,
		logger:    logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shopagent-backend",
		"version": "1.0.0",
	})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new account
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password too short"})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login verifies credentials and returns a token pair
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, domain.ErrAccountLocked):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts, try again later"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a refresh token for a new token pair
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Search runs the product search pipeline for the authenticated user.
// Finished result lists are cached per user and query.
func (h *Handler) Search(c *gin.Context) {
	query := sanitizeQuery(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	email := c.GetString(contextKeyUserEmail)
	cacheKey := "search:" + email + ":" + strings.ToLower(query)

	if cached, err := h.cache.Get(c.Request.Context(), cacheKey); err == nil {
		var results []domain.Product
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			c.JSON(http.StatusOK, domain.SearchResponse{
				Query:   query,
				Cached:  true,
				Results: results,
				User:    email,
			})
			return
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		h.logger.Warn("search cache read failed", zap.Error(err))
	}

	results := h.search.Search(c.Request.Context(), query)

	if payload, err := json.Marshal(results); err == nil {
		if err := h.cache.Set(c.Request.Context(), cacheKey, string(payload), h.searchTTL); err != nil {
			h.logger.Warn("search cache write failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, domain.SearchResponse{
		Query:   query,
		Cached:  false,
		Results: results,
		User:    email,
	})
}

// sanitizeQuery strips angle brackets and bounds the query length.
func sanitizeQuery(query string) string {
	query = strings.NewReplacer("<", "", ">", "").Replace(query)
	query = strings.TrimSpace(query)
	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
	}
	return query
}
