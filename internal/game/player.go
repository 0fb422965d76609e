package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
)

// MaxCharacterNameLength 角色名最大长度
const MaxCharacterNameLength = 100

// HandView 玩家手牌视图
type HandView struct {
	Player    models.Player `json:"player"`
	Character *models.Card  `json:"character,omitempty"`
	Cards     []models.Card `json:"cards"`
}

// HandAction 主持人调整手牌的动作
type HandAction string

const (
	HandAdd    HandAction = "add"
	HandRemove HandAction = "remove"
)

// SelectCharacter 准备阶段选择角色名和颜色
func (s *Service) SelectCharacter(ctx context.Context, sessionID int64, userID, name string, color models.Color) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || color == "" {
		return nil, newError(ErrValidation, "角色名和颜色都不能为空")
	}
	if utf8.RuneCountInString(name) > MaxCharacterNameLength {
		return nil, newError(ErrValidation, "角色名不能超过 %d 个字符", MaxCharacterNameLength)
	}
	if !color.Valid() {
		return nil, newError(ErrValidation, "无效的颜色: %s", color)
	}

	var player *models.Player
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, actor, err := loadActor(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusSetup {
			return newError(ErrInvalidState, "只能在准备阶段选择角色")
		}

		players, err := tx.ListPlayers(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		for _, p := range players {
			if p.ID == actor.ID {
				continue
			}
			if p.Color == color {
				return newError(ErrConflict, "颜色 %s 已被其他玩家选择", color)
			}
			if strings.EqualFold(p.CharacterName, name) {
				return newError(ErrConflict, "角色 %s 已被其他玩家选择", name)
			}
		}

		actor.CharacterName = name
		actor.Color = color
		if err := tx.UpdatePlayer(ctx, actor); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return newError(ErrConflict, "角色名或颜色已被其他玩家选择")
			}
			return fmt.Errorf("更新玩家失败: %w", err)
		}
		player = actor
		return s.systemMessage(ctx, tx, sessionID, models.SystemInfo, "%s will be playing as %s", userID, name)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("玩家选择角色", "sessionId", sessionID, "playerId", player.ID, "character", name, "color", color)
	return player, nil
}

// TransferHost 将主持人身份转移给同一会话中的另一名玩家
func (s *Service) TransferHost(ctx context.Context, sessionID int64, userID string, targetID int64) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, current, err := loadHost(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		target, err := loadPlayer(ctx, tx, sessionID, targetID)
		if err != nil {
			return err
		}
		if target.IsHost {
			return newError(ErrValidation, "%s 已经是主持人", target.DisplayName())
		}

		current.IsHost = false
		if err := tx.UpdatePlayer(ctx, current); err != nil {
			return fmt.Errorf("更新玩家失败: %w", err)
		}
		target.IsHost = true
		if err := tx.UpdatePlayer(ctx, target); err != nil {
			return fmt.Errorf("更新玩家失败: %w", err)
		}
		return s.systemMessage(ctx, tx, sessionID, models.SystemInfo,
			"%s has transferred host status to %s.", current.DisplayName(), target.DisplayName())
	})
	if err != nil {
		return err
	}

	slog.Info("转移主持人", "sessionId", sessionID, "from", userID, "to", targetID)
	return nil
}

// ListPlayers 按加入顺序列出会话玩家
func (s *Service) ListPlayers(ctx context.Context, sessionID int64, userID string) ([]models.Player, error) {
	var players []models.Player
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadActor(ctx, tx, sessionID, userID, false); err != nil {
			return err
		}
		var err error
		players, err = tx.ListPlayers(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		return nil
	})
	return players, err
}

// PlayerHand 当前玩家的手牌和角色牌
func (s *Service) PlayerHand(ctx context.Context, sessionID int64, userID string) (*HandView, error) {
	var view *HandView
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		view, err = buildHandView(ctx, tx, actor)
		return err
	})
	return view, err
}

// CardDetail 查看卡牌，要求已公开、在手牌中或是自己的角色牌
func (s *Service) CardDetail(ctx context.Context, sessionID int64, userID string, cardID int64) (*models.Card, error) {
	var card *models.Card
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, actor, err := loadActor(ctx, tx, sessionID, userID, false)
		if err != nil {
			return err
		}
		card, err = loadCard(ctx, tx, sessionID, cardID)
		if err != nil {
			return err
		}
		if card.Revealed {
			return nil
		}
		owned, err := ownsCard(ctx, tx, actor, cardID)
		if err != nil {
			return err
		}
		if !owned {
			return newError(ErrForbidden, "你无权查看这张卡牌")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// AdminUpdateHand 主持人向玩家手牌添加或移除本局卡牌
func (s *Service) AdminUpdateHand(ctx context.Context, sessionID int64, userID string, targetID int64, action HandAction, cardIDs []int64) (*HandView, error) {
	if action != HandAdd && action != HandRemove {
		return nil, newError(ErrValidation, "无效的操作: %s", action)
	}
	if len(cardIDs) == 0 {
		return nil, newError(ErrValidation, "请选择卡牌")
	}

	var view *HandView
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := loadHost(ctx, tx, sessionID, userID, true); err != nil {
			return err
		}
		target, err := loadPlayer(ctx, tx, sessionID, targetID)
		if err != nil {
			return err
		}
		hand, err := ensureHandFor(ctx, tx, target, s.now())
		if err != nil {
			return err
		}

		for _, id := range cardIDs {
			card, err := loadCard(ctx, tx, sessionID, id)
			if err != nil {
				return err
			}
			switch action {
			case HandAdd:
				err = tx.AddHandCard(ctx, hand.ID, card.ID)
				if errors.Is(err, store.ErrConflict) {
					return newError(ErrConflict, "卡牌 %s 已在其他玩家手中", card.Title)
				}
			case HandRemove:
				err = tx.RemoveHandCard(ctx, hand.ID, card.ID)
			}
			if err != nil {
				return fmt.Errorf("更新手牌失败: %w", err)
			}
		}

		view, err = buildHandView(ctx, tx, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("主持人调整手牌", "sessionId", sessionID, "playerId", targetID, "action", action, "cards", len(cardIDs))
	return view, nil
}

// loadPlayer 读取属于该会话的玩家
func loadPlayer(ctx context.Context, tx store.Tx, sessionID, playerID int64) (*models.Player, error) {
	p, err := tx.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("获取玩家失败: %w", err)
	}
	if p == nil || p.SessionID != sessionID {
		return nil, newError(ErrNotFound, "玩家不存在")
	}
	return p, nil
}

func buildHandView(ctx context.Context, tx store.Tx, p *models.Player) (*HandView, error) {
	cards, err := handCards(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	view := &HandView{Player: *p, Cards: cards}
	if view.Cards == nil {
		view.Cards = []models.Card{}
	}
	if p.CharacterCardID != nil {
		character, err := tx.GetSessionCard(ctx, p.SessionID, *p.CharacterCardID)
		if err != nil {
			return nil, fmt.Errorf("获取角色牌失败: %w", err)
		}
		view.Character = character
	}
	return view, nil
}
