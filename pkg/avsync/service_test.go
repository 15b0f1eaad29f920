package avsync

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

// memStore is an in-memory AuditStore for service tests.
type memStore struct {
	records map[string]AnalysisRecord
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{records: map[string]AnalysisRecord{}}
}

func (s *memStore) SaveAnalysis(rec *AnalysisRecord) error {
	s.records[rec.ID] = *rec
	return nil
}

func (s *memStore) GetAnalysis(id string) (*AnalysisRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &rec, nil
}

func (s *memStore) ListAnalyses() ([]AnalysisRecord, error) {
	out := make([]AnalysisRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) DeleteAnalysis(id string) error {
	if _, ok := s.records[id]; !ok {
		return errors.New("not found")
	}
	delete(s.records, id)
	return nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func newTestService(t *testing.T, store AuditStore) Service {
	t.Helper()
	svc, err := NewService(WithAuditStore(store))
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

func TestNewServiceRejectsBadOptions(t *testing.T) {
	if _, err := NewService(WithAuditStore(newMemStore()), WithSampleRate(-1)); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestServiceStorePassthrough(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	rec := AnalysisRecord{
		ID:            "rec-1",
		ReferencePath: "a.mkv",
		TargetPath:    "b.mkv",
		Status:        "offset",
		GlobalDelayMs: 250,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.SaveAnalysis(&rec); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetAnalysis("rec-1")
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if got.GlobalDelayMs != 250 {
		t.Errorf("Expected delay 250, got %f", got.GlobalDelayMs)
	}

	all, err := svc.ListAnalyses()
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(all))
	}

	if err := svc.DeleteAnalysis("rec-1"); err != nil {
		t.Fatalf("DeleteAnalysis failed: %v", err)
	}
	if _, err := svc.GetAnalysis("rec-1"); err == nil {
		t.Error("Expected deleted record to be gone")
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !store.closed {
		t.Error("Close must close the audit store")
	}
}

func TestServicePlanCorrection(t *testing.T) {
	svc := newTestService(t, newMemStore())
	defer svc.Close()

	rec := models.CorrectionRecommendation{
		Type:    models.CorrectionDelay,
		DelayMs: -400,
		IsSafe:  true,
	}
	p, err := svc.PlanCorrection(rec, 120000)
	if err != nil {
		t.Fatalf("PlanCorrection failed: %v", err)
	}
	if len(p.Operations) != 1 || p.Operations[0].Type != models.OpTrim {
		t.Errorf("Expected a single trim operation, got %+v", p.Operations)
	}
	if len(p.Checkpoints) != 3 {
		t.Errorf("Expected 3 checkpoints, got %d", len(p.Checkpoints))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.sqlite3")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer store.Close()

	rec := AnalysisRecord{
		ID:             "44444444-4444-4444-8444-444444444444",
		ReferencePath:  "ref.mkv",
		TargetPath:     "tgt.mkv",
		Status:         "offset",
		GlobalDelayMs:  123,
		Confidence:     0.8,
		CorrectionType: "delay",
		IsSafe:         false,
		Warnings:       []string{"Low confidence offset estimate", "Offset exceeds safe auto-correction range"},
		ResultJSON:     `{"status":"offset"}`,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.SaveAnalysis(&rec); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}

	got, err := store.GetAnalysis(rec.ID)
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if len(got.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings to round-trip, got %d", len(got.Warnings))
	}
	if got.Warnings[0] != rec.Warnings[0] || got.Warnings[1] != rec.Warnings[1] {
		t.Errorf("Warnings mismatch: %v", got.Warnings)
	}
	if got.ResultJSON != rec.ResultJSON {
		t.Errorf("ResultJSON mismatch: %s", got.ResultJSON)
	}
}
