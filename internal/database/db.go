// Package database 提供基于 PostgreSQL 的存储实现
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"alice-srv/internal/config"
	"alice-srv/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB 全局数据库连接池
var DB *pgxpool.Pool

// InitDB 初始化数据库连接
func InitDB(ctx context.Context, cfg *config.Config) error {
	dsn := cfg.DatabaseDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("解析数据库连接配置失败: %w", err)
	}

	cpus := int32(runtime.NumCPU())
	poolConfig.MaxConns = cpus * 2 // 设置最大连接数为 cpu 数 * 2
	poolConfig.MinConns = cpus     // 设置最小连接数为 cpu 数

	DB, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("创建数据库连接池失败: %w", err)
	}

	// 测试连接
	if err := DB.Ping(ctx); err != nil {
		return fmt.Errorf("数据库连接测试失败: %w", err)
	}

	slog.Info("数据库连接成功")
	return nil
}

// Store PostgreSQL 存储，每次 InTx 对应一个数据库事务
type Store struct {
	pool *pgxpool.Pool
}

// NewStore 创建存储，pool 为 nil 时使用全局连接池
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		pool = DB
	}
	return &Store{pool: pool}
}

// InTx 在事务中执行 fn，fn 返回错误时回滚
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// pgTx 实现 store.Tx
type pgTx struct {
	tx pgx.Tx
}

var _ store.Tx = (*pgTx)(nil)

// mapErr 将唯一约束冲突转换为 store.ErrConflict
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// RunMigrations 执行数据库迁移
func RunMigrations(ctx context.Context) error {
	// 确保迁移历史表存在
	if err := ensureMigrationsTable(ctx); err != nil {
		return err
	}

	// 读取已执行的迁移版本
	appliedVersions, err := getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	// 读取迁移文件
	migrations, err := readMigrationFiles(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	// 按版本号排序
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	// 执行未应用的迁移
	for _, m := range migrations {
		if _, applied := appliedVersions[m.Version]; applied {
			continue
		}

		slog.Info("执行迁移", "version", m.Version, "name", m.Name)

		err := pgx.BeginFunc(ctx, DB, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("执行迁移 %d_%s 失败: %w", m.Version, m.Name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				m.Version, m.Name,
			); err != nil {
				return fmt.Errorf("记录迁移历史失败: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("迁移完成", "version", m.Version, "name", m.Name)
	}

	return nil
}

// Migration 迁移文件结构
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// ensureMigrationsTable 确保迁移历史表存在
func ensureMigrationsTable(ctx context.Context) error {
	_, err := DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// getAppliedMigrations 获取已应用的迁移版本
func getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := DB.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// readMigrationFiles 读取迁移文件
// 格式: 000001_init_schema.up.sql
func readMigrationFiles(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("读取迁移目录失败: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".up.sql"),
			SQL:     string(content),
		})
	}

	return migrations, nil
}

// Close 关闭数据库连接
func Close() {
	if DB != nil {
		DB.Close()
	}
}
