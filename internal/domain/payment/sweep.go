package payment

import "time"

// SweepCursor 定期照合で最後に確認した行の位置
// 作成日時とIDの組で順序付け、次回はこの位置より後ろから取得する
type SweepCursor struct {
	CreatedAt time.Time
	ID        string
}

// Before 作成日時とIDの組がカーソル以前かどうかを返す
func (c *SweepCursor) Before(createdAt time.Time, id string) bool {
	if c == nil {
		return false
	}
	if createdAt.Equal(c.CreatedAt) {
		return id <= c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

// NextSweepCursor 取得した件数がlimitに満たなければ先頭へ戻すためnilを返す
func NextSweepCursor(fetched, limit int, last *SweepCursor) *SweepCursor {
	if fetched < limit || last == nil {
		return nil
	}
	return last
}
