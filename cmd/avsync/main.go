package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shlokdhakrey/avsync/pkg/avsync"
	"github.com/shlokdhakrey/avsync/pkg/logger"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Global flags
var (
	dbPath      string
	tempDir     string
	ffmpegPath  string
	sampleRate  int
	fingerprint bool
	deep        bool
	jsonOutput  bool
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AVSYNC_DB_PATH", "avsync.sqlite3"), "Path to the SQLite audit database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AVSYNC_TEMP_DIR", "/tmp"), "Directory for temporary audio extraction files")
	flag.StringVar(&ffmpegPath, "ffmpeg", getEnvOrDefault("AVSYNC_FFMPEG", "ffmpeg"), "Path to the ffmpeg binary")
	flag.IntVar(&sampleRate, "rate", 8000, "Audio sample rate for correlation analysis")
	flag.BoolVar(&fingerprint, "fingerprint", true, "Enable fingerprint comparison")
	flag.BoolVar(&deep, "deep", false, "Run deep analysis (finer windows, no length cap)")
	flag.BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a sync analysis service with the configured options.
func createService() (avsync.Service, error) {
	opts := []avsync.Option{
		avsync.WithDBPath(dbPath),
		avsync.WithTempDir(tempDir),
		avsync.WithFFmpegPath(ffmpegPath),
		avsync.WithSampleRate(sampleRate),
		avsync.WithFingerprinting(fingerprint),
	}
	if deep {
		opts = append(opts, avsync.WithDeepAnalysis())
	}
	return avsync.NewService(opts...)
}

func main() {
	log := logger.GetLogger()

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Infof("Executing command: %s", command)

	switch command {
	case "analyze":
		handleAnalyze(args[1:])
	case "quickcheck":
		handleQuickCheck(args[1:])
	case "plan":
		handlePlan(args[1:])
	case "list":
		handleList()
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAnalyze(args []string) {
	log := logger.GetLogger()

	if len(args) < 2 {
		fmt.Println("Usage: avsync analyze <reference_file> <target_file>")
		os.Exit(1)
	}
	refPath, targetPath := args[0], args[1]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	if !jsonOutput {
		fmt.Println("Analyzing synchronization...")
		fmt.Println("   This may take a few moments for long media")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	result, err := svc.Analyze(ctx, refPath, targetPath)
	if err != nil {
		fmt.Printf("Analysis failed: %v\n", err)
		log.Errorf("Analyze failed: %v", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
		return
	}

	fmt.Printf("\nStatus:      %s\n", result.Status)
	fmt.Printf("Delay:       %.0f ms (target relative to reference)\n", result.GlobalDelayMs)
	fmt.Printf("Confidence:  %.2f\n", result.Confidence)
	if result.HasDrift {
		fmt.Printf("Drift:       %.2f ms/s\n", result.DriftRate)
	}
	if result.HasStructuralDiffs {
		fmt.Printf("Structural differences: %d\n", len(result.StructuralDiffs))
		for _, d := range result.StructuralDiffs {
			fmt.Printf("   %s at %.0fms (%.0fms)\n", d.Type, d.RefStartMs, d.DurationMs)
		}
	}
	fmt.Printf("\nRecommendation: %s", result.Recommendation.Type)
	if result.Recommendation.IsSafe {
		fmt.Println(" (safe to apply automatically)")
	} else {
		fmt.Println(" (requires review)")
	}
	switch result.Recommendation.Type {
	case models.CorrectionDelay:
		fmt.Printf("   Adjust target by %+.0f ms\n", result.Recommendation.DelayMs)
	case models.CorrectionStretch:
		fmt.Printf("   Rescale tempo by factor %.4f\n", result.Recommendation.TempoFactor)
	case models.CorrectionSegmentRepair:
		fmt.Printf("   Repair %d segment(s)\n", len(result.Recommendation.Segments))
	}
	for _, w := range result.Recommendation.Warnings {
		fmt.Printf("   warning: %s\n", w)
	}
}

func handleQuickCheck(args []string) {
	log := logger.GetLogger()

	if len(args) < 2 {
		fmt.Println("Usage: avsync quickcheck <reference_file> <target_file>")
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	result, err := svc.QuickSyncCheck(ctx, args[0], args[1])
	if err != nil {
		fmt.Printf("Quick check failed: %v\n", err)
		log.Errorf("QuickSyncCheck failed: %v", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
		return
	}

	if result.InSync {
		fmt.Printf("In sync (offset %.0f ms, confidence %.2f)\n", result.OffsetMs, result.Confidence)
	} else {
		fmt.Printf("Out of sync: offset %.0f ms (confidence %.2f)\n", result.OffsetMs, result.Confidence)
	}
	if result.NeedsDetailedAnalysis {
		fmt.Println("Detailed analysis recommended: run 'avsync analyze'")
	}
}

// handlePlan builds a correction plan from a persisted analysis.
func handlePlan(args []string) {
	log := logger.GetLogger()

	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	durationMs := planCmd.Float64("duration", 0, "Media duration in ms, used to place verification checkpoints")
	planCmd.Parse(args)

	if planCmd.NArg() < 1 {
		fmt.Println("Usage: avsync plan <analysis_id> [--duration <ms>]")
		os.Exit(1)
	}
	id := planCmd.Arg(0)

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	rec, err := svc.GetAnalysis(id)
	if err != nil {
		fmt.Printf("Analysis not found: %v\n", err)
		log.Errorf("GetAnalysis failed: %v", err)
		os.Exit(1)
	}

	var result models.SyncAnalysisResult
	if err := json.Unmarshal([]byte(rec.ResultJSON), &result); err != nil {
		fmt.Printf("Stored analysis is unreadable: %v\n", err)
		log.Errorf("Result JSON decode failed for %s: %v", id, err)
		os.Exit(1)
	}

	correctionPlan, err := svc.PlanCorrection(result.Recommendation, *durationMs)
	if err != nil {
		fmt.Printf("Failed to build plan: %v\n", err)
		log.Errorf("PlanCorrection failed: %v", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(correctionPlan)
		return
	}

	if len(correctionPlan.Operations) == 0 {
		fmt.Println("No correction needed")
		return
	}
	fmt.Printf("Correction plan for %s:\n", id)
	for i, op := range correctionPlan.Operations {
		switch op.Type {
		case models.OpDelayInsert, models.OpPad:
			fmt.Printf("%d. %s %+.0f ms\n", i+1, op.Type, op.DelayMs)
		case models.OpTempoRescale:
			fmt.Printf("%d. %s factor %.4f\n", i+1, op.Type, op.Factor)
		case models.OpTrim:
			fmt.Printf("%d. %s %.0f-%.0f ms\n", i+1, op.Type, op.StartMs, op.EndMs)
		default:
			fmt.Printf("%d. %s %s\n", i+1, op.Type, op.Note)
		}
	}
	if len(correctionPlan.Checkpoints) > 0 {
		fmt.Printf("Verify offset at:")
		for _, cp := range correctionPlan.Checkpoints {
			fmt.Printf(" %.0fms", cp.TimeMs)
		}
		fmt.Println()
	}
	if correctionPlan.RequiresReview {
		fmt.Println("Manual review required before applying")
	}
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	records, err := svc.ListAnalyses()
	if err != nil {
		fmt.Printf("Failed to list analyses: %v\n", err)
		log.Errorf("ListAnalyses failed: %v", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(records)
		return
	}

	if len(records) == 0 {
		fmt.Println("No analyses recorded")
		return
	}

	fmt.Printf("Found %d analysis record(s):\n\n", len(records))
	for i, rec := range records {
		fmt.Printf("%d. %s (%s)\n", i+1, rec.ID, rec.CreatedAt.Format(time.RFC3339))
		fmt.Printf("   %s vs %s\n", rec.ReferencePath, rec.TargetPath)
		fmt.Printf("   status=%s delay=%.0fms confidence=%.2f correction=%s safe=%s\n",
			rec.Status, rec.GlobalDelayMs, rec.Confidence, rec.CorrectionType, strconv.FormatBool(rec.IsSafe))
		fmt.Println()
	}
	log.Infof("Listed %d analyses", len(records))
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: avsync delete <analysis_id>")
		os.Exit(1)
	}
	id := args[0]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.DeleteAnalysis(id); err != nil {
		fmt.Printf("Failed to delete analysis: %v\n", err)
		log.Errorf("DeleteAnalysis failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted analysis %s\n", id)
	log.Infof("Deleted analysis %s", id)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("avsync - Audio/Video Synchronization Analysis")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        SQLite audit database (env: AVSYNC_DB_PATH, default: avsync.sqlite3)")
	fmt.Println("  --temp <dir>       Temporary directory for extracted audio (env: AVSYNC_TEMP_DIR, default: /tmp)")
	fmt.Println("  --ffmpeg <path>    ffmpeg binary (env: AVSYNC_FFMPEG, default: ffmpeg)")
	fmt.Println("  --rate <hz>        Correlation sample rate (default: 8000)")
	fmt.Println("  --fingerprint      Enable fingerprint comparison (default: true)")
	fmt.Println("  --deep             Deep analysis: finer windows, no length cap")
	fmt.Println("  --json             Print results as JSON")
	fmt.Println("\nUsage:")
	fmt.Println("  avsync [global-options] analyze <reference_file> <target_file>")
	fmt.Println("  avsync [global-options] quickcheck <reference_file> <target_file>")
	fmt.Println("  avsync [global-options] plan <analysis_id> [--duration <ms>]")
	fmt.Println("  avsync [global-options] list")
	fmt.Println("  avsync [global-options] delete <analysis_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Full analysis of a dubbed track against the original")
	fmt.Println("  avsync --db sync.sqlite3 analyze original.mkv dubbed.mkv")
	fmt.Println()
	fmt.Println("  # Fast gate before committing to a full run")
	fmt.Println("  avsync quickcheck original.mkv dubbed.mkv")
	fmt.Println()
	fmt.Println("  # Build a correction plan from a stored analysis")
	fmt.Println("  avsync --json plan 3f6c2d1e-... --duration 5400000")
}
