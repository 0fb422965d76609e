package middleware

import (
	"context"
	"net/http"
	"strconv"

	"alice-srv/pkg/utils"
)

// SessionIDKey 会话ID上下文键
const SessionIDKey ContextKey = "sessionID"

// ValidateSessionID 校验路径中的 {sessionId}
func ValidateSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("sessionId")
		if raw == "" {
			utils.ErrorResponse(w, http.StatusBadRequest, "缺少会话ID", nil)
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			utils.ErrorResponse(w, http.StatusBadRequest, "无效的会话ID格式", nil)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID 从上下文获取会话ID
func GetSessionID(r *http.Request) int64 {
	if v, ok := r.Context().Value(SessionIDKey).(int64); ok {
		return v
	}
	return 0
}
