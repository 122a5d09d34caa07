// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one call per served request.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, elapsed time.Duration)
}

// NewRouter builds the gin engine serving h. recorder may be nil.
func NewRouter(h *Handler, recorder RequestRecorder, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(logger, recorder))
	h.Routes(r)
	return r
}

// accessLog logs each request and feeds recorder. Unmatched routes are
// recorded under "unmatched" to keep label cardinality bounded.
func accessLog(logger *slog.Logger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if recorder != nil {
			recorder.RecordRequest(c.Request.Method, route, status, elapsed)
		}
		logger.InfoContext(c.Request.Context(), "http request",
			"event", "http_request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", c.ClientIP(),
		)
	}
}
