package avsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/internal/plan"
	"github.com/shlokdhakrey/avsync/internal/syncengine"
	"github.com/shlokdhakrey/avsync/pkg/logger"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// syncService is the default implementation of the Service interface.
type syncService struct {
	engine *syncengine.Engine
	store  AuditStore
	log    Logger
	config *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	// Create or use provided audit store
	var store AuditStore
	var err error
	if cfg.Store != nil {
		store = cfg.Store
	} else {
		store, err = NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
	}

	provider := audio.NewFFmpegProvider(cfg.FFmpegPath, cfg.TempDir, cfg.ExtractTimeout)

	var progress syncengine.ProgressFunc
	if cfg.Progress != nil {
		fn := cfg.Progress
		progress = func(stage string, done, total int) { fn(stage, done, total) }
	}

	engine, err := syncengine.New(provider, syncengine.Options{
		SampleRate:     cfg.SampleRate,
		MaxOffset:      cfg.MaxOffset,
		Window:         cfg.Window,
		Step:           cfg.Step,
		Fingerprinting: cfg.Fingerprinting,
		Deep:           cfg.Deep,
		Progress:       progress,
	}, cfg.Logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &syncService{
		engine: engine,
		store:  store,
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

// Analyze runs the full multi-method analysis and persists the result in the
// audit store. A persistence failure is logged, never propagated: the caller
// still gets the analysis.
func (s *syncService) Analyze(ctx context.Context, referencePath, targetPath string) (*models.SyncAnalysisResult, error) {
	s.log.Infof("Analyzing sync: %s vs %s", referencePath, targetPath)

	result, err := s.engine.Analyze(ctx, referencePath, targetPath)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	rec := s.recordFromResult(referencePath, targetPath, result)
	if err := s.store.SaveAnalysis(rec); err != nil {
		s.log.Warnf("Failed to persist analysis %s: %v", rec.ID, err)
	}

	s.log.Infof("Analysis %s: status=%s delay=%.0fms confidence=%.2f",
		rec.ID, result.Status, result.GlobalDelayMs, result.Confidence)
	return result, nil
}

// QuickSyncCheck runs the correlation-only fast path. Quick checks are not
// persisted.
func (s *syncService) QuickSyncCheck(ctx context.Context, referencePath, targetPath string) (*models.QuickCheckResult, error) {
	s.log.Infof("Quick sync check: %s vs %s", referencePath, targetPath)
	return s.engine.QuickSyncCheck(ctx, referencePath, targetPath)
}

// PlanCorrection maps a recommendation onto executable operations.
func (s *syncService) PlanCorrection(rec models.CorrectionRecommendation, mediaDurationMs float64) (*models.CorrectionPlan, error) {
	return plan.Build(rec, mediaDurationMs)
}

// GetAnalysis retrieves one persisted analysis by its record ID.
func (s *syncService) GetAnalysis(id string) (*AnalysisRecord, error) {
	return s.store.GetAnalysis(id)
}

// ListAnalyses returns all persisted analyses, newest first.
func (s *syncService) ListAnalyses() ([]AnalysisRecord, error) {
	return s.store.ListAnalyses()
}

// DeleteAnalysis removes a persisted analysis.
func (s *syncService) DeleteAnalysis(id string) error {
	return s.store.DeleteAnalysis(id)
}

// Close releases all resources held by the service.
func (s *syncService) Close() error {
	return s.store.Close()
}

func (s *syncService) recordFromResult(referencePath, targetPath string, result *models.SyncAnalysisResult) *AnalysisRecord {
	payload, err := json.Marshal(result)
	if err != nil {
		s.log.Warnf("Failed to serialize analysis result: %v", err)
		payload = nil
	}
	return &AnalysisRecord{
		ID:             uuid.NewString(),
		ReferencePath:  referencePath,
		TargetPath:     targetPath,
		Status:         string(result.Status),
		GlobalDelayMs:  result.GlobalDelayMs,
		Confidence:     result.Confidence,
		CorrectionType: string(result.Recommendation.Type),
		IsSafe:         result.Recommendation.IsSafe,
		Warnings:       result.Recommendation.Warnings,
		ResultJSON:     string(payload),
		CreatedAt:      time.Now().UTC(),
	}
}
