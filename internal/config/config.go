// Package config 提供应用配置管理功能
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 存储驱动
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config 应用配置结构
type Config struct {
	// 服务器配置
	Port string `env:"PORT" envDefault:"11451"`

	// 数据库配置
	DBHost       string `env:"DB_HOST" envDefault:"localhost"`
	DBPort       string `env:"DB_PORT" envDefault:"5432"`
	DBSocketPath string `env:"DB_SOCKET_PATH"`
	DBUser       string `env:"DB_USER" envDefault:"postgres"`
	DBPassword   string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName       string `env:"DB_NAME" envDefault:"alice-srv"`

	// 存储驱动，memory 仅用于本地试玩和测试
	// memory 每个事务都会复制全部数据，开销随数据量线性增长，且重启后数据丢失
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// 限流配置
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"5"` // 最大尝试次数
	LockTime    int `env:"LOCK_TIME" envDefault:"5"`    // 锁定时间（分钟）

	// 定时任务
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	PurgeSchedule string        `env:"PURGE_SCHEDULE" envDefault:"0 4 * * *"`
	Retention     time.Duration `env:"RETENTION" envDefault:"2160h"` // 已结束会话保留时长，0 表示不清理

	// 启动时导入的参考牌组文件
	DeckFile string `env:"DECK_FILE"`
}

// Load 加载 .env 文件（可选）后从环境变量解析配置
// 已设置的环境变量不会被 .env 覆盖
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("加载 %s 失败: %w", name, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.StoreDriver)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_ATTEMPTS 必须大于 0")
	}
	if c.LockTime <= 0 {
		return fmt.Errorf("LOCK_TIME 必须大于 0")
	}
	if c.Retention < 0 {
		return fmt.Errorf("RETENTION 不能为负数")
	}
	return nil
}

// LockDuration 登录失败后的锁定时长
func (c *Config) LockDuration() time.Duration {
	return time.Duration(c.LockTime) * time.Minute
}

// DatabaseDSN 返回数据库连接字符串
func (c *Config) DatabaseDSN() string {
	if c.DBSocketPath != "" {
		// Unix Socket 连接
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DBSocketPath, c.DBUser, c.DBPassword, c.DBName)
	}
	// TCP 连接
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
