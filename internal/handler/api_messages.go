package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"alice-srv/internal/game"
	"alice-srv/internal/middleware"
	"alice-srv/internal/models"
	"alice-srv/pkg/utils"
)

// BroadcastRequest 主持人广播请求
type BroadcastRequest struct {
	Content string            `json:"content"`
	Type    models.SystemType `json:"type"`
}

// ClearMessagesResponse 清空消息响应
type ClearMessagesResponse struct {
	Deleted int64 `json:"deleted"`
}

// FetchMessages 处理 GET /api/sessions/{sessionId}/messages?after=
// after 为上次收到的最后一条消息ID
func (h *Handler) FetchMessages(w http.ResponseWriter, r *http.Request) {
	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			utils.ErrorResponse(w, http.StatusBadRequest, "无效的 after 参数", nil)
			return
		}
		after = v
	}

	messages, err := h.Game.FetchMessages(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), after)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, messages)
}

// SendMessage 处理 POST /api/sessions/{sessionId}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req game.MessageInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	msg, err := h.Game.SendMessage(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, msg)
}

// ClearMessages 处理 DELETE /api/sessions/{sessionId}/messages
func (h *Handler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Game.ClearMessages(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, ClearMessagesResponse{Deleted: deleted})
}

// Broadcast 处理 POST /api/sessions/{sessionId}/broadcast
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	msg, err := h.Game.Broadcast(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), req.Content, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, msg)
}

// Stats 处理 GET /api/sessions/{sessionId}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Game.SessionStats(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, stats)
}

// DownloadTranscript 处理 GET /api/sessions/{sessionId}/transcript
func (h *Handler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r)
	t, err := h.Game.Transcript(r.Context(), sessionID, middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := t.Archive()
	if err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, "打包会话记录失败", err)
		return
	}
	utils.ZipResponse(w, fmt.Sprintf("session_%d.zip", sessionID), data)
}

// MessageDetail 处理 GET /api/sessions/{sessionId}/messages/{messageId}
func (h *Handler) MessageDetail(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "messageId")
	if !ok {
		return
	}

	msg, err := h.Game.MessageDetail(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, msg)
}
