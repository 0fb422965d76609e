package database

import (
	"context"

	"alice-srv/internal/models"
)

// GetSessionStats 获取会话统计信息
func (t *pgTx) GetSessionStats(ctx context.Context, sessionID int64) (*models.SessionStats, error) {
	var s models.SessionStats
	err := t.tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM players WHERE session_id = $1) AS player_count,
			(SELECT COUNT(*) FROM cards c JOIN decks d ON d.id = c.deck_id
				WHERE d.session_id = $1 AND d.deck_type = 'game') AS card_count,
			(SELECT COUNT(*) FROM cards c JOIN decks d ON d.id = c.deck_id
				WHERE d.session_id = $1 AND d.deck_type = 'game' AND c.revealed) AS revealed_count,
			(SELECT COUNT(*) FROM hand_cards hc JOIN hands h ON h.id = hc.hand_id
				WHERE h.session_id = $1) AS dealt_count,
			(SELECT COUNT(*) FROM messages WHERE session_id = $1) AS message_count,
			(SELECT COUNT(*) FROM messages WHERE session_id = $1 AND recipient_id IS NOT NULL) AS direct_count
	`, sessionID).Scan(
		&s.PlayerCount, &s.CardCount, &s.RevealedCount,
		&s.DealtCount, &s.MessageCount, &s.DirectCount,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
