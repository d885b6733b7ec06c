package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/platform/logger"
)

// PipelineRun is one ledger row per stage execution.
type PipelineRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Stage      string         `gorm:"column:stage;not null" json:"stage"`
	Persona    string         `gorm:"column:persona" json:"persona"`
	Model      string         `gorm:"column:model" json:"model"`
	Status     string         `gorm:"column:status;not null" json:"status"`
	FaultKind  string         `gorm:"column:fault_kind" json:"fault_kind"`
	Attempts   int            `gorm:"column:attempts" json:"attempts"`
	ArtifactAt string         `gorm:"column:artifact_at" json:"artifact_at"`
	Detail     datatypes.JSON `gorm:"column:detail" json:"detail"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at" json:"finished_at"`
}

func (PipelineRun) TableName() string {
	return "pipeline_run"
}

// Ledger records stage outcomes in a local sqlite database. Recording
// is best effort: a ledger failure never fails a run. A nil *Ledger is
// valid and records nothing.
type Ledger struct {
	db  *gorm.DB
	log *logger.Logger
}

func OpenLedger(path string, log *logger.Logger) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fault.New(fault.FatalConfig, "open run ledger %s: %v", path, err)
	}
	if err := db.AutoMigrate(&PipelineRun{}); err != nil {
		return nil, fault.New(fault.FatalConfig, "migrate run ledger %s: %v", path, err)
	}
	return &Ledger{db: db, log: log}, nil
}

func (l *Ledger) Record(run PipelineRun) {
	if l == nil || l.db == nil {
		return
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := l.db.Create(&run).Error; err != nil && l.log != nil {
		l.log.Warn("ledger write failed", "stage", run.Stage, "error", err)
	}
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(limit int) ([]PipelineRun, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []PipelineRun
	err := l.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}
