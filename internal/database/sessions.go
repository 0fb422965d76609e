package database

import (
	"context"

	"alice-srv/internal/models"

	"github.com/jackc/pgx/v5"
)

// CreateSession 创建会话
func (t *pgTx) CreateSession(ctx context.Context, s *models.Session) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sessions (title, status, start_time, end_time, join_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, s.Title, s.Status, s.StartTime, s.EndTime, s.JoinCode, s.CreatedAt).Scan(&s.ID)
	return mapErr(err)
}

// GetSession 根据ID获取会话
func (t *pgTx) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return collectOne(rows, err, scanSession)
}

// LockSession 获取会话并加行锁，NO KEY UPDATE 不阻塞其他事务插入引用该会话的行
func (t *pgTx) LockSession(ctx context.Context, id int64) (*models.Session, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR NO KEY UPDATE`, id)
	return collectOne(rows, err, scanSession)
}

// GetSessionByJoinCode 根据加入码获取会话
func (t *pgTx) GetSessionByJoinCode(ctx context.Context, code string) (*models.Session, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE join_code = $1`, code)
	return collectOne(rows, err, scanSession)
}

// UpdateSession 更新会话状态和时间
func (t *pgTx) UpdateSession(ctx context.Context, s *models.Session) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE sessions
		SET title = $1, status = $2, start_time = $3, end_time = $4
		WHERE id = $5
	`, s.Title, s.Status, s.StartTime, s.EndTime, s.ID)
	return err
}

// ListSessionIDsByStatus 按状态列出会话ID
func (t *pgTx) ListSessionIDsByStatus(ctx context.Context, status models.SessionStatus) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM sessions WHERE status = $1 ORDER BY id`, status)
	return collectAll(rows, err, pgx.RowTo[int64])
}

// ListSessionsByUser 列出用户参与的会话，最新的在前
func (t *pgTx) ListSessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT s.id, s.title, s.status, s.start_time, s.end_time, s.join_code, s.created_at
		FROM sessions s
		JOIN players p ON p.session_id = s.id
		WHERE p.user_id = $1
		ORDER BY s.created_at DESC, s.id DESC
	`, userID)
	return collectAll(rows, err, scanSession)
}
