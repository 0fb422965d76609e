package handler

import (
	"net/http"

	"alice-srv/internal/game"
	"alice-srv/internal/middleware"
	"alice-srv/pkg/utils"
)

// ToggleCardResponse 切换公开状态响应
type ToggleCardResponse struct {
	CardID   int64 `json:"cardId"`
	Revealed bool  `json:"revealed"`
}

// DealRequest 主持人补发卡牌请求
type DealRequest struct {
	Kind game.DealKind `json:"kind"`
}

// DealResponse 补发结果
type DealResponse struct {
	Dealt int `json:"dealt"`
}

// CardDetail 处理 GET /api/sessions/{sessionId}/cards/{cardId}
func (h *Handler) CardDetail(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := h.Game.CardDetail(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, card)
}

// RevealCard 处理 POST /api/sessions/{sessionId}/cards/{cardId}/reveal
func (h *Handler) RevealCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := h.Game.RevealCard(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, card)
}

// AdminToggleCard 处理 POST /api/sessions/{sessionId}/admin/cards/{cardId}/toggle
func (h *Handler) AdminToggleCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}

	revealed, err := h.Game.AdminToggleCard(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, ToggleCardResponse{CardID: cardID, Revealed: revealed})
}

// AdminRevealCard 处理 POST /api/sessions/{sessionId}/admin/cards/{cardId}/reveal
func (h *Handler) AdminRevealCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := h.Game.AdminRevealCard(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, card)
}

// AdminDealCards 处理 POST /api/sessions/{sessionId}/admin/deal
func (h *Handler) AdminDealCards(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	dealt, err := h.Game.AdminDealCards(r.Context(), middleware.GetSessionID(r), middleware.GetUserID(r), req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, DealResponse{Dealt: dealt})
}
