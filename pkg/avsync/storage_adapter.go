package avsync

import (
	"strings"

	"github.com/shlokdhakrey/avsync/pkg/avsync/storage"
)

// storeAdapter adapts the storage.DBClient to implement the AuditStore
// interface.
type storeAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStore creates a new SQLite audit store backend.
func NewSQLiteStore(dbPath string) (AuditStore, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storeAdapter{db: db}, nil
}

func (s *storeAdapter) SaveAnalysis(rec *AnalysisRecord) error {
	return s.db.SaveAnalysis(&storage.Analysis{
		ID:             rec.ID,
		ReferencePath:  rec.ReferencePath,
		TargetPath:     rec.TargetPath,
		Status:         rec.Status,
		GlobalDelayMs:  rec.GlobalDelayMs,
		Confidence:     rec.Confidence,
		CorrectionType: rec.CorrectionType,
		IsSafe:         rec.IsSafe,
		Warnings:       strings.Join(rec.Warnings, "\n"),
		ResultJSON:     rec.ResultJSON,
		CreatedAt:      rec.CreatedAt,
	})
}

func (s *storeAdapter) GetAnalysis(id string) (*AnalysisRecord, error) {
	row, err := s.db.GetAnalysis(id)
	if err != nil {
		return nil, err
	}
	rec := recordFromRow(row)
	return &rec, nil
}

func (s *storeAdapter) ListAnalyses() ([]AnalysisRecord, error) {
	rows, err := s.db.ListAnalyses()
	if err != nil {
		return nil, err
	}
	recs := make([]AnalysisRecord, len(rows))
	for i := range rows {
		recs[i] = recordFromRow(&rows[i])
	}
	return recs, nil
}

func (s *storeAdapter) DeleteAnalysis(id string) error {
	return s.db.DeleteAnalysis(id)
}

func (s *storeAdapter) Close() error {
	return s.db.Close()
}

func recordFromRow(row *storage.Analysis) AnalysisRecord {
	var warnings []string
	if row.Warnings != "" {
		warnings = strings.Split(row.Warnings, "\n")
	}
	return AnalysisRecord{
		ID:             row.ID,
		ReferencePath:  row.ReferencePath,
		TargetPath:     row.TargetPath,
		Status:         row.Status,
		GlobalDelayMs:  row.GlobalDelayMs,
		Confidence:     row.Confidence,
		CorrectionType: row.CorrectionType,
		IsSafe:         row.IsSafe,
		Warnings:       warnings,
		ResultJSON:     row.ResultJSON,
		CreatedAt:      row.CreatedAt,
	}
}
