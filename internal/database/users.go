package database

import (
	"context"
	"errors"
	"time"

	"alice-srv/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetUser 根据ID获取用户
func (t *pgTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	var createIP, updateIP *string

	err := t.tx.QueryRow(ctx, `
		SELECT user_id, password, created_at, updated_at, create_ip, update_ip
		FROM users
		WHERE user_id = $1
	`, userID).Scan(
		&u.UserID, &u.Password, &u.CreatedAt, &u.UpdatedAt, &createIP, &updateIP,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if createIP != nil {
		u.CreateIP = *createIP
	}
	if updateIP != nil {
		u.UpdateIP = *updateIP
	}
	return &u, nil
}

// CreateUser 创建新用户
func (t *pgTx) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (user_id, password, created_at, updated_at, create_ip, update_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.UserID, u.Password, u.CreatedAt, u.UpdatedAt, u.CreateIP, u.UpdateIP)
	return mapErr(err)
}

// UpdateUserPassword 更新用户密码
func (t *pgTx) UpdateUserPassword(ctx context.Context, userID, password, ip string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE users
		SET password = $1, updated_at = $2, update_ip = $3
		WHERE user_id = $4
	`, password, time.Now(), ip, userID)
	return err
}

// TouchUser 更新用户最后活跃时间和IP
func (t *pgTx) TouchUser(ctx context.Context, userID, ip string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE users
		SET updated_at = $1, update_ip = $2
		WHERE user_id = $3
	`, time.Now(), ip, userID)
	return err
}
