package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ysnap/internal/ysnap"
)

// newTestHistory creates a new in-memory history with migrations applied.
func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()

	h, err := NewSQLiteHistory(":memory:")
	if err != nil {
		t.Fatalf("failed to create history: %v", err)
	}
	t.Cleanup(func() {
		h.Close()
	})
	return h
}

func TestSQLiteHistory_StartAndFinish(t *testing.T) {
	h := newTestHistory(t)
	started := time.Date(2022, 3, 14, 23, 52, 19, 0, time.Local)

	rec := &ysnap.RotationRecord{
		OperationID: "op-1",
		Source:      "/home/user",
		Target:      "/backups",
		StartedAt:   started,
		Status:      ysnap.StatusRunning,
	}
	if err := h.StartRotation(rec); err != nil {
		t.Fatalf("StartRotation() error = %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("StartRotation() did not set ID")
	}

	rec.FinishedAt = sql.NullTime{Time: started.Add(time.Minute), Valid: true}
	rec.Status = ysnap.StatusSuccess
	rec.Snapshot = "ysnap_20220314_235219"
	rec.Pruned = 2
	rec.Actions = 6
	if err := h.FinishRotation(rec); err != nil {
		t.Fatalf("FinishRotation() error = %v", err)
	}

	recs, err := h.ListRotations(10)
	if err != nil {
		t.Fatalf("ListRotations() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("ListRotations() returned %d records, want 1", len(recs))
	}
	got := recs[0]
	if got.OperationID != "op-1" || got.Status != ysnap.StatusSuccess || got.Snapshot != "ysnap_20220314_235219" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Pruned != 2 || got.Actions != 6 {
		t.Errorf("Pruned/Actions = %d/%d, want 2/6", got.Pruned, got.Actions)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if !got.FinishedAt.Valid || !got.FinishedAt.Time.Equal(started.Add(time.Minute)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
}

func TestSQLiteHistory_RunningHasNoFinishTime(t *testing.T) {
	h := newTestHistory(t)
	rec := &ysnap.RotationRecord{OperationID: "op-1", Source: "/s", Target: "/t", StartedAt: time.Now(), Status: ysnap.StatusRunning}
	if err := h.StartRotation(rec); err != nil {
		t.Fatal(err)
	}

	recs, err := h.ListRotations(1)
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].FinishedAt.Valid {
		t.Error("running rotation should have no finish time")
	}
	if recs[0].Status != ysnap.StatusRunning {
		t.Errorf("Status = %s, want running", recs[0].Status)
	}
}

func TestSQLiteHistory_ListRotations(t *testing.T) {
	h := newTestHistory(t)
	base := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &ysnap.RotationRecord{
			OperationID: fmt.Sprintf("op-%d", i),
			Source:      "/s",
			Target:      "/t",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			Status:      ysnap.StatusRunning,
		}
		if err := h.StartRotation(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := h.ListRotations(3)
	if err != nil {
		t.Fatalf("ListRotations() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListRotations() returned %d, want 3", len(recs))
	}
	for i, want := range []string{"op-4", "op-3", "op-2"} {
		if recs[i].OperationID != want {
			t.Errorf("recs[%d] = %s, want %s", i, recs[i].OperationID, want)
		}
	}
}

func TestSQLiteHistory_FinishUnknown(t *testing.T) {
	h := newTestHistory(t)
	err := h.FinishRotation(&ysnap.RotationRecord{ID: 42, Status: ysnap.StatusError})
	if err == nil {
		t.Error("FinishRotation() expected error for unknown id")
	}
}

func TestSQLiteHistory_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewSQLiteHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := &ysnap.RotationRecord{OperationID: "op-1", Source: "/s", Target: "/t", StartedAt: time.Now(), Status: ysnap.StatusRunning}
	if err := h.StartRotation(rec); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = NewSQLiteHistory(path)
	if err != nil {
		t.Fatalf("reopening history: %v", err)
	}
	defer h.Close()
	recs, err := h.ListRotations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 record after reopen, got %d", len(recs))
	}
}
