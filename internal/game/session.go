package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"alice-srv/internal/models"
	"alice-srv/internal/store"

	"github.com/google/uuid"
)

const (
	// JoinCodeLength 加入码长度
	JoinCodeLength = 8
	// MaxTitleLength 标题最大长度
	MaxTitleLength = 100
	// RecommendedPlayers 少于该人数时提示
	RecommendedPlayers = 3

	maxJoinCodeAttempts = 10
)

// StatusView 轮询用的会话状态
type StatusView struct {
	Status        models.SessionStatus `json:"status"`
	TimeRemaining int                  `json:"timeRemaining"`
	TimeElapsed   int                  `json:"timeElapsed"`
	PlayerCount   int                  `json:"playerCount"`
}

// NewJoinCode 生成 8 位大写加入码
func NewJoinCode() string {
	return strings.ToUpper(uuid.NewString()[:JoinCodeLength])
}

// NormalizeJoinCode 规范化用户输入的加入码
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateSession 创建会话，创建者成为主持人
func (s *Service) CreateSession(ctx context.Context, title, userID string) (*models.Session, *models.Player, error) {
	now := s.now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Alice Search - " + now.Format("Jan 02, 2006")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, nil, newError(ErrValidation, "标题不能超过 %d 个字符", MaxTitleLength)
	}

	var (
		sess *models.Session
		host *models.Player
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		code, err := uniqueJoinCode(ctx, tx)
		if err != nil {
			return err
		}

		sess = &models.Session{
			Title:     title,
			Status:    models.StatusSetup,
			JoinCode:  code,
			CreatedAt: now,
		}
		if err := tx.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("创建会话失败: %w", err)
		}

		host = &models.Player{
			SessionID: sess.ID,
			UserID:    userID,
			IsHost:    true,
			CreatedAt: now,
		}
		if err := tx.CreatePlayer(ctx, host); err != nil {
			return fmt.Errorf("创建主持人失败: %w", err)
		}

		if err := s.systemMessage(ctx, tx, sess.ID, models.SystemInfo,
			"Game created. Invite players using the join code: %s", sess.JoinCode); err != nil {
			return err
		}

		return ensureHand(ctx, tx, host, now)
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("创建游戏", "sessionId", sess.ID, "joinCode", sess.JoinCode, "host", userID)
	return sess, host, nil
}

// uniqueJoinCode 生成尚未使用的加入码
func uniqueJoinCode(ctx context.Context, tx store.Tx) (string, error) {
	for range maxJoinCodeAttempts {
		code := NewJoinCode()
		existing, err := tx.GetSessionByJoinCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("检查加入码失败: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("无法生成唯一的加入码")
}

// JoinSession 通过加入码加入准备中的会话，已加入时返回已有玩家
func (s *Service) JoinSession(ctx context.Context, joinCode, userID string) (*models.Player, error) {
	code := NormalizeJoinCode(joinCode)
	var player *models.Player
	created := false

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		found, err := tx.GetSessionByJoinCode(ctx, code)
		if err != nil {
			return fmt.Errorf("获取会话失败: %w", err)
		}
		if found == nil {
			return newError(ErrNotFound, "无效的加入码或游戏已开始")
		}
		sess, err := loadSession(ctx, tx, found.ID, true)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusSetup {
			return newError(ErrNotFound, "无效的加入码或游戏已开始")
		}

		existing, err := tx.GetPlayerByUser(ctx, sess.ID, userID)
		if err != nil {
			return fmt.Errorf("获取玩家失败: %w", err)
		}
		if existing != nil {
			player = existing
			return nil
		}

		now := s.now()
		player = &models.Player{
			SessionID: sess.ID,
			UserID:    userID,
			CreatedAt: now,
		}
		if err := tx.CreatePlayer(ctx, player); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return newError(ErrConflict, "你已经加入了该游戏")
			}
			return fmt.Errorf("创建玩家失败: %w", err)
		}
		if err := ensureHand(ctx, tx, player, now); err != nil {
			return err
		}
		created = true
		return s.systemMessage(ctx, tx, sess.ID, models.SystemInfo, "%s has joined the game.", userID)
	})
	if err != nil {
		return nil, err
	}

	if created {
		slog.Info("玩家加入游戏", "sessionId", player.SessionID, "playerId", player.ID, "userId", userID)
	}
	return player, nil
}

// Start 开始游戏并发牌
func (s *Service) Start(ctx context.Context, sessionID int64, userID string) error {
	var playerCount int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, actor, err := loadHost(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		if !actor.CanStartGame(sess) {
			return newError(ErrInvalidState, "游戏已经开始")
		}

		players, err := tx.ListPlayers(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		for _, p := range players {
			if !p.HasCharacter() {
				return newError(ErrInvalidState, "所有玩家都必须先选择角色")
			}
		}
		playerCount = len(players)

		now := s.now()
		end := now.Add(models.GameDuration)
		sess.Status = models.StatusInProgress
		sess.StartTime = &now
		sess.EndTime = &end
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return fmt.Errorf("更新会话失败: %w", err)
		}

		if err := s.systemMessage(ctx, tx, sess.ID, models.SystemInfo,
			"The game has started. You have %d minutes to find Alice.", int(models.GameDuration.Minutes())); err != nil {
			return err
		}
		// 重置后再次开局时保留上一轮的发牌结果
		decks, err := tx.ListSessionDecks(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("获取会话牌组失败: %w", err)
		}
		if len(decks) > 0 {
			return s.systemMessage(ctx, tx, sess.ID, models.SystemInfo,
				"Cards from the previous round have been kept.")
		}

		return s.deal(ctx, tx, sess, players)
	})
	if err != nil {
		return err
	}

	slog.Info("游戏开始", "sessionId", sessionID, "players", playerCount)
	return nil
}

// End 主持人结束游戏
func (s *Service) End(ctx context.Context, sessionID int64, userID string) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, _, err := loadHost(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress {
			return newError(ErrInvalidState, "游戏不在进行中")
		}
		return s.finish(ctx, tx, sess)
	})
	if err != nil {
		return err
	}

	slog.Info("游戏结束", "sessionId", sessionID, "by", userID)
	return nil
}

// finish 将进行中的会话置为结束，调用方需持有会话锁
func (s *Service) finish(ctx context.Context, tx store.Tx, sess *models.Session) error {
	sess.Status = models.StatusFinished
	if err := tx.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("更新会话失败: %w", err)
	}
	return s.systemMessage(ctx, tx, sess.ID, models.SystemInfo, "The game has ended.")
}

// Reset 主持人将已结束的游戏恢复到准备阶段，发牌结果保留
func (s *Service) Reset(ctx context.Context, sessionID int64, userID string) error {
	var hidden int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, _, err := loadHost(ctx, tx, sessionID, userID, true)
		if err != nil {
			return err
		}
		if sess.Status != models.StatusFinished {
			return newError(ErrInvalidState, "只有已结束的游戏可以重置")
		}

		sess.Status = models.StatusSetup
		sess.StartTime = nil
		sess.EndTime = nil
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return fmt.Errorf("更新会话失败: %w", err)
		}

		hidden, err = tx.ResetSessionCards(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("重置卡牌失败: %w", err)
		}

		return s.systemMessage(ctx, tx, sess.ID, models.SystemWarning, "Game has been reset by the host.")
	})
	if err != nil {
		return err
	}

	slog.Info("游戏已重置", "sessionId", sessionID, "hiddenCards", hidden)
	return nil
}

// TimeRemaining 返回剩余整分钟数，超时时结束游戏并返回 0
func (s *Service) TimeRemaining(ctx context.Context, sessionID int64) (int, error) {
	minutes, _, err := s.expire(ctx, sessionID)
	return minutes, err
}

// expire 惰性超时检查，ended 表示本次调用结束了游戏
func (s *Service) expire(ctx context.Context, sessionID int64) (minutes int, ended bool, err error) {
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		sess, err := loadSession(ctx, tx, sessionID, false)
		if err != nil {
			return err
		}
		m, expired := sess.RemainingMinutes(s.now())
		if !expired {
			minutes = m
			return nil
		}

		// 加锁后重新检查，保证只结束一次
		sess, err = loadSession(ctx, tx, sessionID, true)
		if err != nil {
			return err
		}
		if _, expired := sess.RemainingMinutes(s.now()); !expired {
			return nil
		}
		ended = true
		return s.finish(ctx, tx, sess)
	})
	if err != nil {
		return 0, false, err
	}

	if ended {
		slog.Info("游戏时间到，自动结束", "sessionId", sessionID)
	}
	return minutes, ended, nil
}

// TimeElapsed 返回开局后经过的整分钟数
func (s *Service) TimeElapsed(ctx context.Context, sessionID int64) (int, error) {
	var elapsed int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		sess, err := loadSession(ctx, tx, sessionID, false)
		if err != nil {
			return err
		}
		elapsed = sess.ElapsedMinutes(s.now())
		return nil
	})
	return elapsed, err
}

// Status 玩家轮询状态，顺带执行定时公开与超时检查
func (s *Service) Status(ctx context.Context, sessionID int64, userID string) (*StatusView, error) {
	if err := s.store.InTx(ctx, func(tx store.Tx) error {
		_, _, err := loadActor(ctx, tx, sessionID, userID, false)
		return err
	}); err != nil {
		return nil, err
	}

	if _, err := s.CheckCardReveals(ctx, sessionID); err != nil {
		return nil, err
	}
	remaining, err := s.TimeRemaining(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &StatusView{TimeRemaining: remaining}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		sess, err := loadSession(ctx, tx, sessionID, false)
		if err != nil {
			return err
		}
		players, err := tx.ListPlayers(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("获取玩家列表失败: %w", err)
		}
		view.Status = sess.Status
		view.TimeElapsed = sess.ElapsedMinutes(s.now())
		view.PlayerCount = len(players)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetSession 玩家查看会话
func (s *Service) GetSession(ctx context.Context, sessionID int64, userID string) (*models.Session, error) {
	var sess *models.Session
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sess, _, err = loadActor(ctx, tx, sessionID, userID, false)
		return err
	})
	return sess, err
}

// ListMySessions 列出用户参与的会话
func (s *Service) ListMySessions(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sessions, err = tx.ListSessionsByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("获取会话列表失败: %w", err)
	}
	return sessions, nil
}

// Sweep 对所有进行中的会话执行定时公开和超时检查，返回结束的会话数
func (s *Service) Sweep(ctx context.Context) (int, error) {
	var ids []int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListSessionIDsByStatus(ctx, models.StatusInProgress)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("获取进行中的会话失败: %w", err)
	}

	ended := 0
	for _, id := range ids {
		if _, err := s.CheckCardReveals(ctx, id); err != nil {
			slog.Error("定时公开卡牌失败", "sessionId", id, "error", err)
			continue
		}
		_, done, err := s.expire(ctx, id)
		if err != nil {
			slog.Error("超时检查失败", "sessionId", id, "error", err)
			continue
		}
		if done {
			ended++
		}
	}
	return ended, nil
}

// Purge 删除结束超过 retention 的会话，retention 为 0 时不删除
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	var deleted int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		deleted, err = tx.DeleteFinishedSessions(ctx, s.now().Add(-retention))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("清理过期会话失败: %w", err)
	}
	if deleted > 0 {
		slog.Info("清理过期会话", "count", deleted)
	}
	return deleted, nil
}
