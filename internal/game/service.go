// Package game 实现游戏会话的生命周期、发牌与定时公开逻辑
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"alice-srv/internal/models"
	"alice-srv/internal/store"
)

// Service 游戏服务
type Service struct {
	store store.Store
	now   func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option 服务选项
type Option func(*Service)

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand 设置随机源
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// NewService 创建游戏服务
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// shuffle 对卡牌做 Fisher-Yates 洗牌
func (s *Service) shuffle(cards []models.Card) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

func (s *Service) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// loadSession 读取会话，lock 为 true 时锁定到事务结束
func loadSession(ctx context.Context, tx store.Tx, sessionID int64, lock bool) (*models.Session, error) {
	var (
		sess *models.Session
		err  error
	)
	if lock {
		sess, err = tx.LockSession(ctx, sessionID)
	} else {
		sess, err = tx.GetSession(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}
	if sess == nil {
		return nil, newError(ErrNotFound, "游戏不存在")
	}
	return sess, nil
}

// loadActor 读取会话及当前用户对应的玩家
func loadActor(ctx context.Context, tx store.Tx, sessionID int64, userID string, lock bool) (*models.Session, *models.Player, error) {
	sess, err := loadSession(ctx, tx, sessionID, lock)
	if err != nil {
		return nil, nil, err
	}
	player, err := tx.GetPlayerByUser(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("获取玩家失败: %w", err)
	}
	if player == nil {
		return nil, nil, newError(ErrForbidden, "你不是该游戏的玩家")
	}
	return sess, player, nil
}

// loadHost 读取会话并要求当前用户是主持人
func loadHost(ctx context.Context, tx store.Tx, sessionID int64, userID string, lock bool) (*models.Session, *models.Player, error) {
	sess, player, err := loadActor(ctx, tx, sessionID, userID, lock)
	if err != nil {
		return nil, nil, err
	}
	if !player.IsHost {
		return nil, nil, newError(ErrForbidden, "只有主持人可以执行此操作")
	}
	return sess, player, nil
}

// systemMessage 在当前事务中写入一条系统消息
func (s *Service) systemMessage(ctx context.Context, tx store.Tx, sessionID int64, typ models.SystemType, format string, args ...any) error {
	msg := &models.Message{
		SessionID:  sessionID,
		Content:    fmt.Sprintf(format, args...),
		IsSystem:   true,
		SystemType: typ,
		CreatedAt:  s.now(),
	}
	if err := tx.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("创建系统消息失败: %w", err)
	}
	return nil
}
