package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trading-account-engine/internal/api_gateway/middleware"
)

// Error codes returned in ErrorInfo.Code
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeUnprocessable = "UNPROCESSABLE_ENTITY"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope of every JSON body the gateway writes
type Response struct {
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page returned by list endpoints
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

func newMetaInfo(p PaginationParams, total int64) *MetaInfo {
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return &MetaInfo{
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		TotalItems: int(total),
	}
}

func respond(c *gin.Context, status int, resp Response) {
	resp.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, resp)
}

// RespondOK sends a 200 with data
func RespondOK(c *gin.Context, data any) {
	respond(c, http.StatusOK, Response{Data: data})
}

// RespondAccepted sends a 202: the request was queued for the account processor
func RespondAccepted(c *gin.Context, data any) {
	respond(c, http.StatusAccepted, Response{Data: data})
}

// RespondPage sends a 200 with one page of items and its position in the full list
func RespondPage(c *gin.Context, items any, p PaginationParams, total int64) {
	respond(c, http.StatusOK, Response{Data: items, Meta: newMetaInfo(p, total)})
}

func RespondError(c *gin.Context, status int, code, message string) {
	respond(c, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, CodeBadRequest, message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondError(c, http.StatusNotFound, CodeNotFound, message)
}

func RespondConflict(c *gin.Context, message string) {
	RespondError(c, http.StatusConflict, CodeConflict, message)
}

// RespondUnprocessable is for requests that parse but break an account rule
func RespondUnprocessable(c *gin.Context, message string) {
	RespondError(c, http.StatusUnprocessableEntity, CodeUnprocessable, message)
}

// RespondInternalError hides the cause; handlers log it before calling
func RespondInternalError(c *gin.Context) {
	RespondError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}
