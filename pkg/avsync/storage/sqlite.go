package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "avsync.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Analysis is one persisted analysis row. Warnings are newline-joined and
// the full result travels as a JSON blob.
type Analysis struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	ReferencePath  string    `gorm:"index:idx_reference_path" json:"reference_path"`
	TargetPath     string    `gorm:"index:idx_target_path" json:"target_path"`
	Status         string    `gorm:"index:idx_status" json:"status"`
	GlobalDelayMs  float64   `json:"global_delay_ms"`
	Confidence     float64   `json:"confidence"`
	CorrectionType string    `json:"correction_type"`
	IsSafe         bool      `json:"is_safe"`
	Warnings       string    `json:"warnings"`
	ResultJSON     string    `gorm:"type:text" json:"result_json"`
	CreatedAt      time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("AVSYNC_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Analysis{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) SaveAnalysis(a *Analysis) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if a.ID == "" {
		return errors.New("analysis ID is empty")
	}
	if err := c.DB.Create(a).Error; err != nil {
		return fmt.Errorf("creating analysis: %w", err)
	}
	return nil
}

func (c *DBClient) GetAnalysis(id string) (*Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var a Analysis
	if err := c.DB.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("analysis %s not found", id)
		}
		return nil, fmt.Errorf("querying analysis: %w", err)
	}
	return &a, nil
}

func (c *DBClient) ListAnalyses() ([]Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Analysis
	if err := c.DB.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	return rows, nil
}

func (c *DBClient) DeleteAnalysis(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&Analysis{})
	if res.Error != nil {
		return fmt.Errorf("deleting analysis: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("analysis %s not found", id)
	}
	return nil
}
