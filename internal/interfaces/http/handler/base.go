package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/logger"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/dto"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// ownerID returns the authenticated caller. It answers 401 and returns
// false when there is none.
func (h *BaseHandler) ownerID(c *gin.Context) (string, bool) {
	id := middleware.GetJWTUserID(c)
	if id == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return "", false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError answers a failed request binding, listing field details when
// the validator produced them
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); len(details) > 0 {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			dto.ErrCodeInvalidInput, "Request validation failed", requestID(c), details, nil))
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body")
}

// HandleError converts domain errors to HTTP responses. data, when not
// nil, is returned alongside the error so clients can render the current
// state.
func (h *BaseHandler) HandleError(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		message := domainErr.Message
		// The wrapped error carries the recipient's reason.
		if errors.Is(err, shared.ErrSubmissionRejected) {
			message = err.Error()
		}
		resp := dto.NewErrorResponseWithRequestID(code, message, requestID(c))
		resp.Data = data
		c.JSON(dto.GetHTTPStatus(code), resp)
		return
	}

	logger.L(c.Request.Context()).Error("Unhandled error", zap.Error(err))
	_ = c.Error(err)
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
