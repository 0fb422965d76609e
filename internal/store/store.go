// Package store 定义游戏数据的事务性存储接口
package store

import (
	"context"
	"errors"
	"time"

	"alice-srv/internal/models"
)

// ErrConflict 违反唯一约束
var ErrConflict = errors.New("store: unique constraint violated")

// Store 事务性存储
// InTx 中 fn 返回错误时，事务内的所有写入都会回滚
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 事务内可用的操作
// 查询不到记录时返回 (nil, nil)
type Tx interface {
	// 用户
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserPassword(ctx context.Context, userID, password, ip string) error
	TouchUser(ctx context.Context, userID, ip string) error

	// 会话
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	// LockSession 读取并锁定会话，直到事务结束
	LockSession(ctx context.Context, id int64) (*models.Session, error)
	GetSessionByJoinCode(ctx context.Context, code string) (*models.Session, error)
	UpdateSession(ctx context.Context, s *models.Session) error
	ListSessionIDsByStatus(ctx context.Context, status models.SessionStatus) ([]int64, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]models.Session, error)
	// DeleteFinishedSessions 删除 end_time 早于 before 的已结束会话及其所有数据
	DeleteFinishedSessions(ctx context.Context, before time.Time) (int64, error)

	// 玩家，按加入顺序返回
	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	GetPlayerByUser(ctx context.Context, sessionID int64, userID string) (*models.Player, error)
	ListPlayers(ctx context.Context, sessionID int64) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, p *models.Player) error

	// 牌组与卡牌
	GetReferenceDeck(ctx context.Context) (*models.Deck, error)
	CreateDeck(ctx context.Context, d *models.Deck) error
	DeleteDeck(ctx context.Context, id int64) error
	ListSessionDecks(ctx context.Context, sessionID int64) ([]models.Deck, error)
	CreateCard(ctx context.Context, c *models.Card) error
	ListDeckCards(ctx context.Context, deckID int64) ([]models.Card, error)
	ListSessionCards(ctx context.Context, sessionID int64) ([]models.Card, error)
	// GetSessionCard 读取并锁定属于该会话牌组的卡牌
	GetSessionCard(ctx context.Context, sessionID, cardID int64) (*models.Card, error)
	// ListRevealCandidates 锁定会话牌组中未公开且设置了公开时间的卡牌
	ListRevealCandidates(ctx context.Context, sessionID int64) ([]models.Card, error)
	SetCardRevealed(ctx context.Context, cardID int64, revealed bool) error
	ResetSessionCards(ctx context.Context, sessionID int64) (int64, error)

	// 手牌
	CreateHand(ctx context.Context, h *models.Hand) error
	GetHand(ctx context.Context, playerID int64) (*models.Hand, error)
	ListHandCards(ctx context.Context, handID int64) ([]models.Card, error)
	// AddHandCard 卡牌已在其他手牌中时返回 ErrConflict，已在本手牌中时无操作
	AddHandCard(ctx context.Context, handID, cardID int64) error
	RemoveHandCard(ctx context.Context, handID, cardID int64) error

	// 消息
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, sessionID, messageID int64) (*models.Message, error)
	// ListMessages 按 id 升序返回，id 即分页水位
	ListMessages(ctx context.Context, sessionID, afterID int64) ([]models.Message, error)
	DeleteMessages(ctx context.Context, sessionID int64) (int64, error)

	// 统计
	GetSessionStats(ctx context.Context, sessionID int64) (*models.SessionStats, error)
}
