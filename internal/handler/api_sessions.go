package handler

import (
	"net/http"

	"alice-srv/internal/game"
	"alice-srv/internal/middleware"
	"alice-srv/internal/models"
	"alice-srv/pkg/utils"
)

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// CreateSessionResponse 创建会话响应
type CreateSessionResponse struct {
	Session *models.Session `json:"session"`
	Player  *models.Player  `json:"player"`
}

// JoinSessionRequest 加入会话请求
type JoinSessionRequest struct {
	JoinCode string `json:"joinCode"`
}

// TimerResponse 计时响应
type TimerResponse struct {
	TimeRemaining int `json:"timeRemaining"`
	TimeElapsed   int `json:"timeElapsed"`
}

// CreateSession 处理 POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	sess, player, err := h.Game.CreateSession(r.Context(), req.Title, middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, CreateSessionResponse{Session: sess, Player: player})
}

// ListSessions 处理 GET /api/sessions
// 列出当前用户参与的会话
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Game.ListMySessions(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, sessions)
}

// JoinSession 处理 POST /api/sessions/join
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req JoinSessionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	player, err := h.Game.JoinSession(r.Context(), req.JoinCode, middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, player)
}

// GetSession 处理 GET /api/sessions/{sessionId}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Game.GetSession(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, sess)
}

// Status 处理 GET /api/sessions/{sessionId}/status
// 轮询时顺带触发定时公开和超时结束
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.Game.Status(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, view)
}

// Timer 处理 GET /api/sessions/{sessionId}/timer
func (h *Handler) Timer(w http.ResponseWriter, r *http.Request) {
	view, err := h.Game.Status(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, TimerResponse{TimeRemaining: view.TimeRemaining, TimeElapsed: view.TimeElapsed})
}

// sessionAction 执行仅需会话和用户的主持人操作
func (h *Handler) sessionAction(action func(*game.Service, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(h.Game, r); err != nil {
			writeError(w, err)
			return
		}
		view, err := h.Game.Status(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		utils.SuccessResponse(w, view)
	}
}

// StartSession 处理 POST /api/sessions/{sessionId}/start
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(func(svc *game.Service, r *http.Request) error {
		return svc.Start(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	})(w, r)
}

// EndSession 处理 POST /api/sessions/{sessionId}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(func(svc *game.Service, r *http.Request) error {
		return svc.End(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	})(w, r)
}

// ResetSession 处理 POST /api/sessions/{sessionId}/reset
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(func(svc *game.Service, r *http.Request) error {
		return svc.Reset(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	})(w, r)
}
