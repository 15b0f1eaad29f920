package avsync

import (
	"context"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

type Service interface {
	Analyze(ctx context.Context, referencePath, targetPath string) (*models.SyncAnalysisResult, error)
	QuickSyncCheck(ctx context.Context, referencePath, targetPath string) (*models.QuickCheckResult, error)
	PlanCorrection(rec models.CorrectionRecommendation, mediaDurationMs float64) (*models.CorrectionPlan, error)
	GetAnalysis(id string) (*AnalysisRecord, error)
	ListAnalyses() ([]AnalysisRecord, error)
	DeleteAnalysis(id string) error
	Close() error
}

type AuditStore interface {
	SaveAnalysis(rec *AnalysisRecord) error
	GetAnalysis(id string) (*AnalysisRecord, error)
	ListAnalyses() ([]AnalysisRecord, error)
	DeleteAnalysis(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// ProgressFunc receives stage completion callbacks during analysis.
type ProgressFunc func(stage string, done, total int)
