// Package router 提供 HTTP 路由配置
package router

import (
	"log/slog"
	"net/http"

	"alice-srv/internal/handler"
	"alice-srv/internal/middleware"
)

const healthCheckResponse = `{"status":"ok"}`

// Setup 配置所有路由
func Setup(h *handler.Handler, auth *middleware.Authenticator) *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /isalive", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(healthCheckResponse)); err != nil {
			slog.Error("健康检查响应写入失败", "error", err)
		}
	})

	// 需要认证的接口
	authed := func(fn http.HandlerFunc) http.Handler {
		return middleware.Logger(auth.BasicAuth(fn))
	}
	// 需要认证且路径带会话ID的接口
	session := func(fn http.HandlerFunc) http.Handler {
		return middleware.Logger(middleware.ValidateSessionID(auth.BasicAuth(fn)))
	}

	// 认证
	mux.Handle("GET /auth", authed(h.GetAuth))
	mux.Handle("PUT /auth", authed(h.PutAuth))

	// 会话
	mux.Handle("GET /api/sessions", authed(h.ListSessions))
	mux.Handle("POST /api/sessions", authed(h.CreateSession))
	mux.Handle("POST /api/sessions/join", authed(h.JoinSession))
	mux.Handle("GET /api/sessions/{sessionId}", session(h.GetSession))
	mux.Handle("GET /api/sessions/{sessionId}/status", session(h.Status))
	mux.Handle("GET /api/sessions/{sessionId}/timer", session(h.Timer))
	mux.Handle("POST /api/sessions/{sessionId}/start", session(h.StartSession))
	mux.Handle("POST /api/sessions/{sessionId}/end", session(h.EndSession))
	mux.Handle("POST /api/sessions/{sessionId}/reset", session(h.ResetSession))

	// 玩家
	mux.Handle("GET /api/sessions/{sessionId}/players", session(h.ListPlayers))
	mux.Handle("PUT /api/sessions/{sessionId}/character", session(h.SelectCharacter))
	mux.Handle("POST /api/sessions/{sessionId}/host", session(h.TransferHost))
	mux.Handle("GET /api/sessions/{sessionId}/hand", session(h.PlayerHand))

	// 卡牌
	mux.Handle("GET /api/sessions/{sessionId}/cards/{cardId}", session(h.CardDetail))
	mux.Handle("POST /api/sessions/{sessionId}/cards/{cardId}/reveal", session(h.RevealCard))

	// 消息
	mux.Handle("GET /api/sessions/{sessionId}/messages", session(h.FetchMessages))
	mux.Handle("POST /api/sessions/{sessionId}/messages", session(h.SendMessage))
	mux.Handle("GET /api/sessions/{sessionId}/messages/{messageId}", session(h.MessageDetail))

	// 主持人
	mux.Handle("POST /api/sessions/{sessionId}/admin/cards/{cardId}/toggle", session(h.AdminToggleCard))
	mux.Handle("POST /api/sessions/{sessionId}/admin/cards/{cardId}/reveal", session(h.AdminRevealCard))
	mux.Handle("PATCH /api/sessions/{sessionId}/admin/players/{playerId}/hand", session(h.UpdateHand))
	mux.Handle("POST /api/sessions/{sessionId}/admin/deal", session(h.AdminDealCards))
	mux.Handle("POST /api/sessions/{sessionId}/broadcast", session(h.Broadcast))
	mux.Handle("DELETE /api/sessions/{sessionId}/messages", session(h.ClearMessages))
	mux.Handle("GET /api/sessions/{sessionId}/stats", session(h.Stats))
	mux.Handle("GET /api/sessions/{sessionId}/transcript", session(h.DownloadTranscript))

	return mux
}
