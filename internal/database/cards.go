package database

import (
	"context"

	"alice-srv/internal/models"
)

// GetReferenceDeck 获取参考牌组
func (t *pgTx) GetReferenceDeck(ctx context.Context) (*models.Deck, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+deckColumns+`
		FROM decks
		WHERE deck_type = 'reference' AND session_id IS NULL
		ORDER BY id
		LIMIT 1
	`)
	return collectOne(rows, err, scanDeck)
}

// CreateDeck 创建牌组
func (t *pgTx) CreateDeck(ctx context.Context, d *models.Deck) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO decks (deck_type, name, session_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, d.Type, d.Name, d.SessionID, d.CreatedAt).Scan(&d.ID)
	return mapErr(err)
}

// DeleteDeck 删除牌组，卡牌级联删除
func (t *pgTx) DeleteDeck(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM decks WHERE id = $1`, id)
	return err
}

// ListSessionDecks 列出会话的牌组
func (t *pgTx) ListSessionDecks(ctx context.Context, sessionID int64) ([]models.Deck, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+deckColumns+`
		FROM decks
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	return collectAll(rows, err, scanDeck)
}

// CreateCard 创建卡牌
func (t *pgTx) CreateCard(ctx context.Context, c *models.Card) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cards (deck_id, card_type, title, description, front_image, back_image,
			reveal_offset, revealed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, c.DeckID, c.Type, c.Title, c.Description, c.FrontImage, c.BackImage,
		c.RevealOffset, c.Revealed, c.CreatedAt).Scan(&c.ID)
	return mapErr(err)
}

// ListDeckCards 列出牌组中的卡牌
func (t *pgTx) ListDeckCards(ctx context.Context, deckID int64) ([]models.Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		WHERE c.deck_id = $1
		ORDER BY c.id
	`, deckID)
	return collectAll(rows, err, scanCard)
}

// ListSessionCards 列出会话游戏牌组中的卡牌
func (t *pgTx) ListSessionCards(ctx context.Context, sessionID int64) ([]models.Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE d.session_id = $1 AND d.deck_type = 'game'
		ORDER BY c.id
	`, sessionID)
	return collectAll(rows, err, scanCard)
}

// GetSessionCard 获取会话中的卡牌并加行锁
func (t *pgTx) GetSessionCard(ctx context.Context, sessionID, cardID int64) (*models.Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE c.id = $1 AND d.session_id = $2 AND d.deck_type = 'game'
		FOR UPDATE OF c
	`, cardID, sessionID)
	return collectOne(rows, err, scanCard)
}

// ListRevealCandidates 锁定会话中未公开且设置了公开时间的卡牌
func (t *pgTx) ListRevealCandidates(ctx context.Context, sessionID int64) ([]models.Card, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE d.session_id = $1 AND d.deck_type = 'game'
			AND c.revealed = FALSE AND c.reveal_offset IS NOT NULL
		ORDER BY c.id
		FOR UPDATE OF c
	`, sessionID)
	return collectAll(rows, err, scanCard)
}

// SetCardRevealed 设置卡牌公开状态
func (t *pgTx) SetCardRevealed(ctx context.Context, cardID int64, revealed bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE cards SET revealed = $1 WHERE id = $2`, revealed, cardID)
	return err
}

// ResetSessionCards 将会话所有卡牌恢复为未公开，返回受影响的卡牌数
func (t *pgTx) ResetSessionCards(ctx context.Context, sessionID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE cards c
		SET revealed = FALSE
		FROM decks d
		WHERE d.id = c.deck_id AND d.session_id = $1 AND d.deck_type = 'game' AND c.revealed = TRUE
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
