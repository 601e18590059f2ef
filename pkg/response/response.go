// Package response 统一 HTTP 响应格式
// 成功：{"data": ...}；失败：{"error": "...", "detail": "...", "request_id": "..."}
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionsdesk/pkg/logger"
)

// Success 200 响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created 201 响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// ErrorWithStatus 指定状态码的错误响应
func ErrorWithStatus(c *gin.Context, status int, msg, detail string) {
	body := gin.H{"error": msg}
	if detail != "" {
		body["detail"] = detail
	}
	if rid, ok := c.Request.Context().Value(logger.RequestIDKey).(string); ok {
		body["request_id"] = rid
	}
	c.AbortWithStatusJSON(status, body)
}

// StatusRule 错误到状态码的映射规则
type StatusRule struct {
	Err    error
	Status int
}

// Error 按规则映射错误状态码，未匹配时返回 500 且不暴露内部错误
func Error(c *gin.Context, err error, rules []StatusRule) {
	for _, r := range rules {
		if errors.Is(err, r.Err) {
			ErrorWithStatus(c, r.Status, r.Err.Error(), err.Error())
			return
		}
	}
	logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	ErrorWithStatus(c, http.StatusInternalServerError, "internal server error", "")
}
