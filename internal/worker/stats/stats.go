// Package stats はクラス統計の再集計ジョブを提供する。
// recordsコレクションの時間記録からクラスごとのtotal_time、daily_average、
// weekly_averageを再計算し、クラスドキュメントへ書き戻す。統計は既存データとの
// ワイヤ互換のため文字列として保存する。
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/classtime/internal/docstore"
)

// StatsStore は再集計に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type StatsStore interface {
	List(ctx context.Context, collection string) ([]*docstore.Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
}

// classStats は1クラス分の集計途中経過。
type classStats struct {
	totalSeconds int
	days         map[string]struct{} // 記録のあった日（YYYY-MM-DD）
	weeks        map[string]struct{} // 記録のあったISO週（YYYY-Www）
}

// AggregateJob はクラス統計の再集計ジョブ。
// 全記録からの再計算のため冪等で、記録の削除（退会等）にも追従する。
type AggregateJob struct {
	store  StatsStore
	logger *slog.Logger
}

// NewAggregateJob は新しいAggregateJobを生成する。
func NewAggregateJob(store StatsStore, logger *slog.Logger) *AggregateJob {
	return &AggregateJob{
		store:  store,
		logger: logger,
	}
}

// Run は全クラスの統計を再計算して書き戻す。
// daily_averageは総秒数を記録のあった日数で、weekly_averageは記録のあった
// ISO週数で割った値。記録のないクラスは全統計が "0" になる。
// 更新件数を返す。
func (j *AggregateJob) Run(ctx context.Context) (int, error) {
	start := time.Now()

	records, err := j.store.List(ctx, docstore.CollectionRecords)
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}

	perClass := aggregate(records)

	classes, err := j.store.List(ctx, docstore.CollectionClasses)
	if err != nil {
		return 0, fmt.Errorf("failed to list classes: %w", err)
	}

	updated := 0
	for _, class := range classes {
		stats := perClass[class.ID]

		data := make(map[string]any, len(class.Data))
		for k, v := range class.Data {
			data[k] = v
		}
		data["total_time"] = strconv.Itoa(stats.total())
		data["daily_average"] = strconv.Itoa(stats.dailyAverage())
		data["weekly_average"] = strconv.Itoa(stats.weeklyAverage())

		if err := j.store.Set(ctx, docstore.CollectionClasses, class.ID, data); err != nil {
			j.logger.Error("クラス統計の書き戻しに失敗しました",
				slog.String("class_id", class.ID),
				slog.String("error", err.Error()),
			)
			return updated, fmt.Errorf("failed to update class stats: %w", err)
		}
		updated++
	}

	duration := time.Since(start)
	j.logger.Info("クラス統計の再集計が完了しました",
		slog.Int("classes", updated),
		slog.Int("records", len(records)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return updated, nil
}

// aggregate は記録をクラスごとに集計する。
// recorded_atを解釈できない記録は読み飛ばす。
func aggregate(records []*docstore.Document) map[string]*classStats {
	perClass := make(map[string]*classStats)
	for _, record := range records {
		classID := record.String("class_id")
		if classID == "" {
			continue
		}
		recordedAt, err := time.Parse(time.RFC3339, record.String("recorded_at"))
		if err != nil {
			continue
		}
		seconds, ok := record.Data["seconds"].(float64)
		if !ok || seconds <= 0 {
			continue
		}

		stats := perClass[classID]
		if stats == nil {
			stats = &classStats{
				days:  make(map[string]struct{}),
				weeks: make(map[string]struct{}),
			}
			perClass[classID] = stats
		}

		stats.totalSeconds += int(seconds)
		stats.days[recordedAt.UTC().Format("2006-01-02")] = struct{}{}
		year, week := recordedAt.UTC().ISOWeek()
		stats.weeks[fmt.Sprintf("%04d-W%02d", year, week)] = struct{}{}
	}
	return perClass
}

func (s *classStats) total() int {
	if s == nil {
		return 0
	}
	return s.totalSeconds
}

func (s *classStats) dailyAverage() int {
	if s == nil || len(s.days) == 0 {
		return 0
	}
	return s.totalSeconds / len(s.days)
}

func (s *classStats) weeklyAverage() int {
	if s == nil || len(s.weeks) == 0 {
		return 0
	}
	return s.totalSeconds / len(s.weeks)
}
