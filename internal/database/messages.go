package database

import (
	"context"

	"alice-srv/internal/models"
)

// CreateMessage 创建消息
func (t *pgTx) CreateMessage(ctx context.Context, m *models.Message) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO messages (session_id, sender_id, recipient_id, content, image_url, is_system, system_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.SessionID, m.SenderID, m.RecipientID, m.Content, m.ImageURL, m.IsSystem, m.SystemType, m.CreatedAt).Scan(&m.ID)
}

// GetMessage 读取会话中的一条消息
func (t *pgTx) GetMessage(ctx context.Context, sessionID, messageID int64) (*models.Message, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1 AND session_id = $2
	`, messageID, sessionID)
	return collectOne(rows, err, scanMessage)
}

// ListMessages 列出 afterID 之后的消息，按 id 升序
func (t *pgTx) ListMessages(ctx context.Context, sessionID, afterID int64) ([]models.Message, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE session_id = $1 AND id > $2
		ORDER BY id
	`, sessionID, afterID)
	return collectAll(rows, err, scanMessage)
}

// DeleteMessages 删除会话的所有消息
func (t *pgTx) DeleteMessages(ctx context.Context, sessionID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
