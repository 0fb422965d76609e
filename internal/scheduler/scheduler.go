// Package scheduler 提供定时任务功能
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Game 定时任务依赖的游戏操作
type Game interface {
	Sweep(ctx context.Context) (int, error)
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// Config 调度配置
type Config struct {
	SweepSchedule string
	PurgeSchedule string
	// Retention 为 0 时不注册清理任务
	Retention time.Duration
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron *cron.Cron
	game Game
	cfg  Config
}

// New 创建新的调度器
func New(game Game, cfg Config) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		game: game,
		cfg:  cfg,
	}
}

// Start 注册任务并启动调度器
func (s *Scheduler) Start() error {
	// 检查进行中游戏的公开时间与超时
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.RunSweep); err != nil {
		return fmt.Errorf("注册巡检任务失败: %w", err)
	}

	// 清理过期的已结束会话
	if s.cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(s.cfg.PurgeSchedule, s.RunPurge); err != nil {
			return fmt.Errorf("注册清理任务失败: %w", err)
		}
	}

	s.cron.Start()
	slog.Info("定时任务调度器已启动", "sweep", s.cfg.SweepSchedule, "purge", s.cfg.PurgeSchedule)
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("定时任务调度器已停止")
}

// RunSweep 立即执行一次巡检
func (s *Scheduler) RunSweep() {
	ended, err := s.game.Sweep(context.Background())
	if err != nil {
		slog.Error("巡检任务失败", "error", err)
		return
	}
	if ended > 0 {
		slog.Info("巡检结束超时游戏", "count", ended)
	}
}

// RunPurge 立即执行一次清理
func (s *Scheduler) RunPurge() {
	slog.Info("执行定时数据清理任务")
	deleted, err := s.game.Purge(context.Background(), s.cfg.Retention)
	if err != nil {
		slog.Error("数据清理任务失败", "error", err)
		return
	}
	slog.Info("数据清理完成", "sessions", deleted)
}
