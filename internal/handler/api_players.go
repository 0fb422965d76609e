package handler

import (
	"net/http"

	"alice-srv/internal/game"
	"alice-srv/internal/middleware"
	"alice-srv/internal/models"
	"alice-srv/pkg/utils"
)

// SelectCharacterRequest 选择角色请求
type SelectCharacterRequest struct {
	CharacterName string       `json:"characterName"`
	Color         models.Color `json:"color"`
}

// TransferHostRequest 转移主持人请求
type TransferHostRequest struct {
	PlayerID int64 `json:"playerId"`
}

// UpdateHandRequest 主持人调整手牌请求
type UpdateHandRequest struct {
	Action  game.HandAction `json:"action"`
	CardIDs []int64         `json:"cardIds"`
}

// ListPlayers 处理 GET /api/sessions/{sessionId}/players
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.Game.ListPlayers(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, players)
}

// SelectCharacter 处理 PUT /api/sessions/{sessionId}/character
func (h *Handler) SelectCharacter(w http.ResponseWriter, r *http.Request) {
	var req SelectCharacterRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	player, err := h.Game.SelectCharacter(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r),
		req.CharacterName, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, player)
}

// TransferHost 处理 POST /api/sessions/{sessionId}/host
func (h *Handler) TransferHost(w http.ResponseWriter, r *http.Request) {
	var req TransferHostRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	sessionID := middleware.GetSessionID(r)
	userID := middleware.GetUserID(r)
	if err := h.Game.TransferHost(r.Context(), sessionID, userID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}

	players, err := h.Game.ListPlayers(r.Context(), sessionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, players)
}

// PlayerHand 处理 GET /api/sessions/{sessionId}/hand
func (h *Handler) PlayerHand(w http.ResponseWriter, r *http.Request) {
	view, err := h.Game.PlayerHand(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, view)
}

// UpdateHand 处理 PATCH /api/sessions/{sessionId}/admin/players/{playerId}/hand
func (h *Handler) UpdateHand(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerId")
	if !ok {
		return
	}
	var req UpdateHandRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	view, err := h.Game.AdminUpdateHand(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r),
		playerID, req.Action, req.CardIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, view)
}
