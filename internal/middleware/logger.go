// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"alice-srv/pkg/utils"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader 请求ID响应头
	RequestIDHeader = "X-Request-ID"

	logInfoKey ContextKey = "logInfo"
)

// responseWriter 包装 http.ResponseWriter 以获取状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// logInfo 由内层中间件补充的日志字段
type logInfo struct {
	userID string
}

// setLogUser 记录当前请求的用户，供请求日志使用
func setLogUser(r *http.Request, userID string) {
	if info, ok := r.Context().Value(logInfoKey).(*logInfo); ok {
		info.userID = userID
	}
}

// Logger 请求日志中间件
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		info := &logInfo{}
		ctx := context.WithValue(r.Context(), logInfoKey, info)

		// 包装 ResponseWriter
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r.WithContext(ctx))

		level := slog.LevelInfo
		if rw.statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "HTTP请求",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
			"ip", utils.GetClientIP(r),
			"user", info.userID,
			"ua", r.UserAgent(),
		)
	})
}
