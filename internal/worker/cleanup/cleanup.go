// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 期限切れセッションは読み取り時にも無効として扱われるため、
// このジョブはテーブルの肥大化を防ぐためだけに実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除し、削除件数を返す。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// PurgeObserver は削除件数を受け取る。メトリクス収集に使う。
type PurgeObserver interface {
	RecordSessionsPurged(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	logger   *slog.Logger
	observer PurgeObserver
}

// NewCleanupJob は新しいCleanupJobを生成する。observerはnilでもよい。
func NewCleanupJob(sessions SessionPurger, logger *slog.Logger, observer PurgeObserver) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		observer: observer,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.observer != nil {
		j.observer.RecordSessionsPurged(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
// 起動直後に1回実行する。個々の実行の失敗はログに残して次回へ持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("session cleanup started", slog.Duration("interval", interval))
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
