package database

import (
	"context"
	"time"
)

// DeleteFinishedSessions 删除结束时间早于 before 的已结束会话
// 牌组、卡牌、玩家、手牌和消息通过外键级联删除
func (t *pgTx) DeleteFinishedSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM sessions
		WHERE status = 'finished'
		AND end_time < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
