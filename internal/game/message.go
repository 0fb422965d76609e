package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
	"alice-srv/pkg/utils"
)

// MaxMessageLength 消息内容最大长度
const MaxMessageLength = 2000

// MessageInput 玩家发送的消息
type MessageInput struct {
	Content     string `json:"content"`
	ImageURL    string `json:"imageUrl"`
	RecipientID *int64 `json:"recipientId"`
}

// Transcript 会话记录导出
type Transcript struct {
	Session  models.Session   `json:"session"`
	Players  []models.Player  `json:"players"`
	Cards    []models.Card    `json:"cards"`
	Messages []models.Message `json:"messages"`
}

// SendMessage 发送公开消息或私信，私信会附带一条不含内容的公开通知
func (s *Service) SendMessage(ctx context.Context, sessionID int64, userID string, in MessageInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	image := strings.TrimSpace(in.ImageURL)
	if content == "" && image == "" {
		return nil, newError(ErrValidation, "消息必须包含文字或图片")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, newError(ErrValidation, "消息不能超过 %d 个字符", MaxMessageLength)
	}

	var msg *models.Message
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		if !actor.CanSendMessage(sess) {
			return newError(ErrInvalidState, "只能在游戏进行中发送消息")
		}

		var recipient *models.Player
		if in.RecipientID != nil {
			if *in.RecipientID == actor.ID {
				return newError(ErrValidation, "不能给自己发送私信")
			}
			recipient, err = loadPlayer(ctx, tx, sessionID, *in.RecipientID)
			if errors.Is(err, ErrNotFound) {
				return newError(ErrValidation, "接收者不存在")
			}
			if err != nil {
				return err
			}
		}

		senderID := actor.ID
		msg = &models.Message{
			SessionID:   sessionID,
			SenderID:    &senderID,
			RecipientID: in.RecipientID,
			Content:     content,
			ImageURL:    image,
			CreatedAt:   s.now(),
		}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("创建消息失败: %w", err)
		}

		if recipient != nil {
			return s.systemMessage(ctx, tx, sessionID, models.SystemInfo,
				"%s sent a direct message to %s", actor.DisplayName(), recipient.DisplayName())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("发送消息", "sessionId", sessionID, "messageId", msg.ID, "direct", msg.IsDirect())
	return msg, nil
}

// FetchMessages 返回 afterID 之后对当前玩家可见的消息，按 id 升序
func (s *Service) FetchMessages(ctx context.Context, sessionID int64, userID string, afterID int64) ([]models.Message, error) {
	visible := []models.Message{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		msgs, err := tx.ListMessages(ctx, sessionID, afterID)
		if err != nil {
			return fmt.Errorf("获取消息失败: %w", err)
		}
		for _, m := range msgs {
			if m.VisibleTo(actor.ID) {
				visible = append(visible, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visible, nil
}

// MessageDetail 返回单条消息，私信只有发送者和接收者可以查看
func (s *Service) MessageDetail(ctx context.Context, sessionID int64, userID string, messageID int64) (*models.Message, error) {
	var msg *models.Message
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		msg, err = tx.GetMessage(ctx, sessionID, messageID)
		if err != nil {
			return fmt.Errorf("获取消息失败: %w", err)
		}
		if msg == nil {
			return newError(ErrNotFound, "消息不存在")
		}
		if !msg.VisibleTo(actor.ID) {
			return newError(ErrForbidden, "无权查看该私信")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Broadcast 主持人发送系统消息
func (s *Service) Broadcast(ctx context.Context, sessionID int64, userID, content string, typ models.SystemType) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(ErrValidation, "消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, newError(ErrValidation, "消息不能超过 %d 个字符", MaxMessageLength)
	}
	if typ == "" {
		typ = models.SystemInfo
	}
	if !typ.Valid() {
		return nil, newError(ErrValidation, "无效的消息类型: %s", typ)
	}

	var msg *models.Message
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, false); err != nil {
			return err
		}
		msg = &models.Message{
			SessionID:  sessionID,
			Content:    content,
			IsSystem:   true,
			SystemType: typ,
			CreatedAt:  s.now(),
		}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("创建系统消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ClearMessages 主持人清空会话消息，返回删除的条数
func (s *Service) ClearMessages(ctx context.Context, sessionID int64, userID string) (int64, error) {
	var deleted int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, true); err != nil {
			return err
		}
		var err error
		deleted, err = tx.DeleteMessages(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("删除消息失败: %w", err)
		}
		return s.systemMessage(ctx, tx, sessionID, models.SystemWarning, "Messages have been cleared by the host.")
	})
	if err != nil {
		return 0, err
	}

	slog.Info("清空消息", "sessionId", sessionID, "deleted", deleted)
	return deleted, nil
}

// SessionStats 主持人查看会话统计
func (s *Service) SessionStats(ctx context.Context, sessionID int64, userID string) (*models.SessionStats, error) {
	var stats *models.SessionStats
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, false); err != nil {
			return err
		}
		var err error
		stats, err = tx.GetSessionStats(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("获取统计失败: %w", err)
		}
		return nil
	})
	return stats, err
}

// Transcript 主持人导出会话记录
func (s *Service) Transcript(ctx context.Context, sessionID int64, userID string) (*Transcript, error) {
	t := &Transcript{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, _, err := loadHost(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		t.Session = *sess
		if t.Players, err = tx.ListPlayers(ctx, sessionID); err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		if t.Cards, err = tx.ListSessionCards(ctx, sessionID); err != nil {
			return fmt.Errorf("获取卡牌失败: %w", err)
		}
		if t.Messages, err = tx.ListMessages(ctx, sessionID, 0); err != nil {
			return fmt.Errorf("获取消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Archive 将会话记录打包为 ZIP
func (t *Transcript) Archive() ([]byte, error) {
	parts := []struct {
		name string
		v    any
	}{
		{"session.json", t.Session},
		{"players.json", t.Players},
		{"cards.json", t.Cards},
		{"messages.json", t.Messages},
	}

	entries := make([]utils.FileEntry, 0, len(parts))
	for _, p := range parts {
		data, err := json.MarshalIndent(p.v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("序列化 %s 失败: %w", p.name, err)
		}
		entries = append(entries, utils.FileEntry{Name: p.name, Data: data, Modified: t.Session.CreatedAt})
	}
	return utils.CreateZip(entries)
}
