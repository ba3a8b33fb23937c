package model

import "time"

// TimeRecord はユーザーがクラスに費やした時間の記録を表す。
// recordsコレクションのドキュメント（UUIDをID）として永続化される。
// クラス統計（total_time、daily_average、weekly_average）は
// このレコード群から集計ワーカーが再計算する。
type TimeRecord struct {
	ID         string
	UserID     string
	ClassID    string
	Seconds    int
	RecordedAt time.Time
}
