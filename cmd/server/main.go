package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alice-srv/internal/config"
	"alice-srv/internal/database"
	"alice-srv/internal/game"
	"alice-srv/internal/handler"
	"alice-srv/internal/middleware"
	"alice-srv/internal/router"
	"alice-srv/internal/scheduler"
	"alice-srv/internal/seed"
	"alice-srv/internal/store"

	"github.com/spf13/cobra"
)

func main() {
	// 配置日志
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("命令执行失败", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "alice-srv",
		Short:         "寻找爱丽丝游戏服务器",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	root.SetVersionTemplate(VersionInfo() + "\n")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", ".env 文件路径")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP 服务器（默认）",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "执行数据库迁移",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), envFile)
			},
		},
		newSeedCmd(&envFile),
	)
	return root
}

func newSeedCmd(envFile *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "导入参考牌组，替换现有的参考牌组",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), *envFile, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "牌组 YAML 文件")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// openPostgres 连接数据库并执行迁移
func openPostgres(ctx context.Context, cfg *config.Config) error {
	slog.Info("连接数据库...")
	if err := database.InitDB(ctx, cfg); err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}

	slog.Info("执行数据库迁移...")
	if err := database.RunMigrations(ctx); err != nil {
		database.Close()
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// openStore 按配置选择存储，返回的 close 函数用于释放连接
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("使用内存存储，重启后数据将丢失")
		return store.NewMemory(), func() {}, nil
	}
	if err := openPostgres(ctx, cfg); err != nil {
		return nil, nil, err
	}
	return database.NewStore(nil), database.Close, nil
}

func runMigrate(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := openPostgres(ctx, cfg); err != nil {
		return err
	}
	database.Close()
	slog.Info("数据库迁移完成")
	return nil
}

func runSeed(ctx context.Context, envFile, file string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverMemory {
		return errors.New("内存存储不支持单独导入牌组，请设置 DECK_FILE")
	}

	deck, err := seed.LoadFile(file)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = seed.Apply(ctx, st, deck)
	return err
}

func runServe(ctx context.Context, envFile string) error {
	slog.Info(VersionInfo())

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 启动时导入牌组
	if cfg.DeckFile != "" {
		deck, err := seed.LoadFile(cfg.DeckFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, st, deck); err != nil {
			return err
		}
	}

	svc := game.NewService(st)

	// 认证失败封禁
	lockout := middleware.NewLockout(cfg.MaxAttempts, cfg.LockDuration())
	defer lockout.Close()
	auth := middleware.NewAuthenticator(st, lockout)

	// 创建路由
	mux := router.Setup(handler.New(svc, auth), auth)

	// 创建服务器
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动定时任务
	sched := scheduler.New(svc, scheduler.Config{
		SweepSchedule: cfg.SweepSchedule,
		PurgeSchedule: cfg.PurgeSchedule,
		Retention:     cfg.Retention,
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		slog.Info("服务器启动", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务器错误: %w", err)
	}

	slog.Info("正在关闭服务器...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("服务器关闭失败", "error", err)
	}

	slog.Info("服务器已关闭")
	return nil
}
