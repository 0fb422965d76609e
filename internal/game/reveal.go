package game

import (
	"context"
	"fmt"
	"log/slog"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
)

// CheckCardReveals 公开所有已到时间的卡牌，返回本次公开的卡牌
// 已公开的卡牌会被跳过，可以重复并发调用
func (s *Service) CheckCardReveals(ctx context.Context, sessionID int64) ([]models.Card, error) {
	var revealed []models.Card
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, err := loadSession(ctx, tx, sessionID, true)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress {
			return nil
		}

		elapsed := sess.ElapsedMinutes(s.now())
		candidates, err := tx.ListRevealCandidates(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("获取待公开卡牌失败: %w", err)
		}
		for _, card := range candidates {
			if !card.ShouldReveal(elapsed) {
				continue
			}
			if err := tx.SetCardRevealed(ctx, card.ID, true); err != nil {
				return fmt.Errorf("公开卡牌失败: %w", err)
			}
			if err := s.systemMessage(ctx, tx, sessionID, models.SystemInfo,
				"A new clue has been revealed: %s", card.Title); err != nil {
				return err
			}
			card.Revealed = true
			revealed = append(revealed, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(revealed) > 0 {
		slog.Info("定时公开卡牌", "sessionId", sessionID, "count", len(revealed))
	}
	return revealed, nil
}

// RevealCard 玩家公开自己持有且已到时间的卡牌
func (s *Service) RevealCard(ctx context.Context, sessionID int64, userID string, cardID int64) (*models.Card, error) {
	var card *models.Card
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress {
			return newError(ErrInvalidState, "游戏不在进行中")
		}

		card, err = loadCard(ctx, tx, sessionID, cardID)
		if err != nil {
			return err
		}
		owned, err := ownsCard(ctx, tx, actor, card.ID)
		if err != nil {
			return err
		}
		if !owned {
			return newError(ErrForbidden, "你没有这张卡牌")
		}
		if card.Revealed {
			return nil
		}
		if card.RevealOffset == nil {
			return newError(ErrNotReady, "这张卡牌不能由玩家公开")
		}
		if elapsed := sess.ElapsedMinutes(s.now()); elapsed < *card.RevealOffset {
			return newError(ErrNotReady, "这张卡牌要到第 %d 分钟才能公开", *card.RevealOffset)
		}

		if err := tx.SetCardRevealed(ctx, card.ID, true); err != nil {
			return fmt.Errorf("公开卡牌失败: %w", err)
		}
		card.Revealed = true
		return s.systemMessage(ctx, tx, sessionID, models.SystemSuccess,
			"%s revealed a card: %s", actor.DisplayName(), card.Title)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("玩家公开卡牌", "sessionId", sessionID, "cardId", cardID, "userId", userID)
	return card, nil
}

// AdminToggleCard 主持人切换卡牌公开状态，返回切换后的状态
func (s *Service) AdminToggleCard(ctx context.Context, sessionID int64, userID string, cardID int64) (bool, error) {
	var revealed bool
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, false); err != nil {
			return err
		}
		card, err := loadCard(ctx, tx, sessionID, cardID)
		if err != nil {
			return err
		}

		revealed = !card.Revealed
		if err := tx.SetCardRevealed(ctx, card.ID, revealed); err != nil {
			return fmt.Errorf("更新卡牌失败: %w", err)
		}
		action := "hidden"
		if revealed {
			action = "revealed"
		}
		return s.systemMessage(ctx, tx, sessionID, models.SystemInfo,
			"Card '%s' has been %s by the host", card.Title, action)
	})
	if err != nil {
		return false, err
	}

	slog.Info("主持人切换卡牌", "sessionId", sessionID, "cardId", cardID, "revealed", revealed)
	return revealed, nil
}

// AdminRevealCard 主持人立即公开卡牌，已公开时无操作
func (s *Service) AdminRevealCard(ctx context.Context, sessionID int64, userID string, cardID int64) (*models.Card, error) {
	var card *models.Card
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, false); err != nil {
			return err
		}
		var err error
		card, err = loadCard(ctx, tx, sessionID, cardID)
		if err != nil {
			return err
		}
		if card.Revealed {
			return nil
		}
		if err := tx.SetCardRevealed(ctx, card.ID, true); err != nil {
			return fmt.Errorf("公开卡牌失败: %w", err)
		}
		card.Revealed = true
		return s.systemMessage(ctx, tx, sessionID, models.SystemSuccess, "Card revealed by host: %s", card.Title)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// loadCard 读取并锁定会话牌组中的卡牌
func loadCard(ctx context.Context, tx store.Tx, sessionID, cardID int64) (*models.Card, error) {
	card, err := tx.GetSessionCard(ctx, sessionID, cardID)
	if err != nil {
		return nil, fmt.Errorf("获取卡牌失败: %w", err)
	}
	if card == nil {
		return nil, newError(ErrNotFound, "卡牌不存在")
	}
	return card, nil
}

// ownsCard 卡牌在玩家手牌中或是玩家的角色牌
func ownsCard(ctx context.Context, tx store.Tx, p *models.Player, cardID int64) (bool, error) {
	if p.CharacterCardID != nil && *p.CharacterCardID == cardID {
		return true, nil
	}
	cards, err := handCards(ctx, tx, p.ID)
	if err != nil {
		return false, err
	}
	for _, c := range cards {
		if c.ID == cardID {
			return true, nil
		}
	}
	return false, nil
}

// handCards 返回玩家手牌中的卡牌，没有手牌时为空
func handCards(ctx context.Context, tx store.Tx, playerID int64) ([]models.Card, error) {
	hand, err := tx.GetHand(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("获取手牌失败: %w", err)
	}
	if hand == nil {
		return nil, nil
	}
	cards, err := tx.ListHandCards(ctx, hand.ID)
	if err != nil {
		return nil, fmt.Errorf("获取手牌失败: %w", err)
	}
	return cards, nil
}
