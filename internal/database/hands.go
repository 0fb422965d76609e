package database

import (
	"context"
	"errors"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"github.com/jackc/pgx/v5"
)

// CreateHand 创建手牌
func (t *pgTx) CreateHand(ctx context.Context, h *models.Hand) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO hands (session_id, player_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, h.SessionID, h.PlayerID, h.CreatedAt).Scan(&h.ID)
	return mapErr(err)
}

// GetHand 获取玩家手牌
func (t *pgTx) GetHand(ctx context.Context, playerID int64) (*models.Hand, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+handColumns+` FROM hands WHERE player_id = $1`, playerID)
	return collectOne(rows, err, scanHand)
}

// ListHandCards 列出手牌中的卡牌
func (t *pgTx) ListHandCards(ctx context.Context, handID int64) ([]models.Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN hand_cards hc ON hc.card_id = c.id
		WHERE hc.hand_id = $1
		ORDER BY c.id
	`, handID)
	return collectAll(rows, err, scanCard)
}

// AddHandCard 向手牌添加卡牌
// 先查询归属，避免唯一约束冲突使整个事务失效
func (t *pgTx) AddHandCard(ctx context.Context, handID, cardID int64) error {
	var owner int64
	err := t.tx.QueryRow(ctx, `SELECT hand_id FROM hand_cards WHERE card_id = $1`, cardID).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	case owner == handID:
		return nil
	default:
		return store.ErrConflict
	}

	_, err = t.tx.Exec(ctx, `INSERT INTO hand_cards (hand_id, card_id) VALUES ($1, $2)`, handID, cardID)
	return mapErr(err)
}

// RemoveHandCard 从手牌移除卡牌
func (t *pgTx) RemoveHandCard(ctx context.Context, handID, cardID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM hand_cards WHERE hand_id = $1 AND card_id = $2`, handID, cardID)
	return err
}
