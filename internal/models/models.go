// Package models 定义游戏实体
package models

import (
	"time"
)

// GameDuration 一局游戏的时长
const GameDuration = 90 * time.Minute

// User 已认证的用户身份
type User struct {
	UserID    string    `json:"userId"`
	Password  string    `json:"-"` // bcrypt 哈希
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreateIP  string    `json:"createIp,omitempty"`
	UpdateIP  string    `json:"updateIp,omitempty"`
}

// Session 游戏会话
type Session struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	JoinCode  string        `json:"joinCode"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ElapsedMinutes 返回开局后经过的整分钟数，未进行中时为 0
func (s *Session) ElapsedMinutes(now time.Time) int {
	if s.Status != StatusInProgress || s.StartTime == nil {
		return 0
	}
	elapsed := now.Sub(*s.StartTime)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// RemainingMinutes 返回距结束的整分钟数，以及是否已超时
func (s *Session) RemainingMinutes(now time.Time) (int, bool) {
	if s.Status != StatusInProgress || s.EndTime == nil {
		return 0, false
	}
	remaining := s.EndTime.Sub(now)
	if remaining <= 0 {
		return 0, true
	}
	return int(remaining / time.Minute), false
}

// Deck 牌组
type Deck struct {
	ID        int64     `json:"id"`
	Type      DeckType  `json:"deckType"`
	Name      string    `json:"name"`
	SessionID *int64    `json:"sessionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Card 卡牌
type Card struct {
	ID           int64     `json:"id"`
	DeckID       int64     `json:"deckId"`
	Type         CardType  `json:"cardType"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	FrontImage   string    `json:"frontImage,omitempty"`
	BackImage    string    `json:"backImage,omitempty"`
	RevealOffset *int      `json:"revealOffset,omitempty"` // 开局后自动公开的分钟数
	Revealed     bool      `json:"revealed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CloneInto 复制卡牌到指定牌组，副本始终未公开
func (c *Card) CloneInto(deckID int64, now time.Time) Card {
	clone := Card{
		DeckID:      deckID,
		Type:        c.Type,
		Title:       c.Title,
		Description: c.Description,
		FrontImage:  c.FrontImage,
		BackImage:   c.BackImage,
		CreatedAt:   now,
	}
	if c.RevealOffset != nil {
		offset := *c.RevealOffset
		clone.RevealOffset = &offset
	}
	return clone
}

// ShouldReveal 判断经过 elapsed 分钟后是否应当公开
func (c *Card) ShouldReveal(elapsed int) bool {
	if c.Revealed || c.RevealOffset == nil {
		return false
	}
	return elapsed >= *c.RevealOffset
}

// Hand 玩家手牌
type Hand struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionId"`
	PlayerID  int64     `json:"playerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Player 会话中的玩家
type Player struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"sessionId"`
	UserID          string    `json:"userId"`
	CharacterName   string    `json:"characterName"`
	Color           Color     `json:"color"`
	IsHost          bool      `json:"isHost"`
	CharacterCardID *int64    `json:"characterCardId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CanStartGame 只有主持人能在准备阶段开局
func (p *Player) CanStartGame(s *Session) bool {
	return p.IsHost && s.Status == StatusSetup
}

// CanSendMessage 只有进行中的游戏可以发送消息
func (p *Player) CanSendMessage(s *Session) bool {
	return s.Status == StatusInProgress
}

// HasCharacter 是否已选择角色
func (p *Player) HasCharacter() bool {
	return p.CharacterName != ""
}

// DisplayName 用于消息中的玩家名称
func (p *Player) DisplayName() string {
	if p.CharacterName != "" {
		return p.CharacterName
	}
	return p.UserID
}

// Message 聊天或系统消息
type Message struct {
	ID          int64      `json:"id"`
	SessionID   int64      `json:"sessionId"`
	SenderID    *int64     `json:"senderId,omitempty"`
	RecipientID *int64     `json:"recipientId,omitempty"`
	Content     string     `json:"content"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	IsSystem    bool       `json:"isSystem"`
	SystemType  SystemType `json:"systemType,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsDirect 是否为私信
func (m *Message) IsDirect() bool {
	return m.RecipientID != nil
}

// VisibleTo 私信只对发送者和接收者可见
func (m *Message) VisibleTo(playerID int64) bool {
	if !m.IsDirect() {
		return true
	}
	if *m.RecipientID == playerID {
		return true
	}
	return m.SenderID != nil && *m.SenderID == playerID
}

// SessionStats 会话统计
type SessionStats struct {
	PlayerCount   int `json:"playerCount"`
	CardCount     int `json:"cardCount"`
	RevealedCount int `json:"revealedCount"`
	DealtCount    int `json:"dealtCount"`
	MessageCount  int `json:"messageCount"`
	DirectCount   int `json:"directCount"`
}
