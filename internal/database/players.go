package database

import (
	"context"

	"alice-srv/internal/models"
)

// CreatePlayer 创建玩家
func (t *pgTx) CreatePlayer(ctx context.Context, p *models.Player) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO players (session_id, user_id, character_name, color, is_host, character_card_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.SessionID, p.UserID, p.CharacterName, p.Color, p.IsHost, p.CharacterCardID, p.CreatedAt).Scan(&p.ID)
	return mapErr(err)
}

// GetPlayer 根据ID获取玩家
func (t *pgTx) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return collectOne(rows, err, scanPlayer)
}

// GetPlayerByUser 获取用户在会话中的玩家
func (t *pgTx) GetPlayerByUser(ctx context.Context, sessionID int64, userID string) (*models.Player, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return collectOne(rows, err, scanPlayer)
}

// ListPlayers 按加入顺序列出会话中的玩家
func (t *pgTx) ListPlayers(ctx context.Context, sessionID int64) ([]models.Player, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	return collectAll(rows, err, scanPlayer)
}

// UpdatePlayer 更新玩家角色、颜色、主持人标记和角色牌
func (t *pgTx) UpdatePlayer(ctx context.Context, p *models.Player) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE players
		SET character_name = $1, color = $2, is_host = $3, character_card_id = $4
		WHERE id = $5
	`, p.CharacterName, p.Color, p.IsHost, p.CharacterCardID, p.ID)
	return mapErr(err)
}
