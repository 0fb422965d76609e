package database

import (
	"errors"

	"alice-srv/internal/models"

	"github.com/jackc/pgx/v5"
)

// 各表查询列，顺序与 scan 函数一致
const (
	sessionColumns = `id, title, status, start_time, end_time, join_code, created_at`
	deckColumns    = `id, deck_type, name, session_id, created_at`
	cardColumns    = `c.id, c.deck_id, c.card_type, c.title, c.description, c.front_image, c.back_image,
		c.reveal_offset, c.revealed, c.created_at`
	playerColumns  = `id, session_id, user_id, character_name, color, is_host, character_card_id, created_at`
	handColumns    = `id, session_id, player_id, created_at`
	messageColumns = `id, session_id, sender_id, recipient_id, content, image_url, is_system, system_type, created_at`
)

func scanSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Title, &s.Status, &s.StartTime, &s.EndTime, &s.JoinCode, &s.CreatedAt)
	return s, err
}

func scanDeck(row pgx.CollectableRow) (models.Deck, error) {
	var d models.Deck
	err := row.Scan(&d.ID, &d.Type, &d.Name, &d.SessionID, &d.CreatedAt)
	return d, err
}

func scanCard(row pgx.CollectableRow) (models.Card, error) {
	var c models.Card
	err := row.Scan(
		&c.ID, &c.DeckID, &c.Type, &c.Title, &c.Description, &c.FrontImage, &c.BackImage,
		&c.RevealOffset, &c.Revealed, &c.CreatedAt,
	)
	return c, err
}

func scanPlayer(row pgx.CollectableRow) (models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.SessionID, &p.UserID, &p.CharacterName, &p.Color, &p.IsHost,
		&p.CharacterCardID, &p.CreatedAt,
	)
	return p, err
}

func scanHand(row pgx.CollectableRow) (models.Hand, error) {
	var h models.Hand
	err := row.Scan(&h.ID, &h.SessionID, &h.PlayerID, &h.CreatedAt)
	return h, err
}

func scanMessage(row pgx.CollectableRow) (models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID, &m.SessionID, &m.SenderID, &m.RecipientID, &m.Content, &m.ImageURL,
		&m.IsSystem, &m.SystemType, &m.CreatedAt,
	)
	return m, err
}

// collectOne 读取单行，没有记录时返回 (nil, nil)
func collectOne[T any](rows pgx.Rows, err error, fn pgx.RowToFunc[T]) (*T, error) {
	if err != nil {
		return nil, err
	}
	v, err := pgx.CollectOneRow(rows, fn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// collectAll 读取所有行
func collectAll[T any](rows pgx.Rows, err error, fn pgx.RowToFunc[T]) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}
