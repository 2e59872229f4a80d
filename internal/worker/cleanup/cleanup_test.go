package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockPurger はSessionPurgerのモック。
type mockPurger struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (m *mockPurger) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockObserver struct {
	total int64
}

func (o *mockObserver) RecordSessionsPurged(count int64) {
	o.total += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 4}
	obs := &mockObserver{}
	job := NewCleanupJob(purger, newTestLogger(&buf), obs)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if purger.callCount() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", purger.callCount())
	}
	if obs.total != 4 {
		t.Errorf("observed = %d, want 4", obs.total)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if entry["deleted_count"] != float64(4) {
		t.Errorf("deleted_count = %v, want 4", entry["deleted_count"])
	}
}

// TestCleanupJob_Run_NoTargets_NoError は削除対象がなくてもエラーにならないことを検証する。
func TestCleanupJob_Run_NoTargets_NoError(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestCleanupJob_Run_ReturnsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	job := NewCleanupJob(&mockPurger{err: dbErr}, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("Run() error = %v, want wrapping %v", err, dbErr)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected ERROR log, got %s", buf.String())
	}
}

// TestCleanupJob_Start_RunsUntilCancelled は起動直後と定期的に実行され、キャンセルで停止することを検証する。
func TestCleanupJob_Start_RunsUntilCancelled(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for purger.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if purger.callCount() < 3 {
		t.Errorf("DeleteExpired calls = %d, want >= 3", purger.callCount())
	}
}
