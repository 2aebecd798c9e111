package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const insertBatchSize = 100

// commandRecord is the row stored in command_records.
type commandRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Seq        uint64    `gorm:"index"`
	CommandID  string    `gorm:"index;size:128"`
	Action     string    `gorm:"size:32"`
	Category   string    `gorm:"size:16"`
	SessionID  string    `gorm:"size:36"`
	Remote     string    `gorm:"size:64"`
	Outcome    string    `gorm:"size:16;index"`
	Error      string    `gorm:"type:text"`
	ReceivedAt time.Time `gorm:"index"`
	DurationMs int64
	CreatedAt  time.Time
}

func (commandRecord) TableName() string { return "command_records" }

func toRow(r Record) commandRecord {
	return commandRecord{
		Seq:        r.Seq,
		CommandID:  r.CommandID,
		Action:     r.Action,
		Category:   r.Category,
		SessionID:  r.SessionID,
		Remote:     r.Remote,
		Outcome:    string(r.Outcome),
		Error:      r.Error,
		ReceivedAt: r.ReceivedAt,
		DurationMs: r.DurationMs,
	}
}

func (c commandRecord) record() Record {
	return Record{
		Seq:        c.Seq,
		CommandID:  c.CommandID,
		Action:     c.Action,
		Category:   c.Category,
		SessionID:  c.SessionID,
		Remote:     c.Remote,
		Outcome:    Outcome(c.Outcome),
		Error:      c.Error,
		ReceivedAt: c.ReceivedAt,
		DurationMs: c.DurationMs,
	}
}

// Postgres stores the full history through gorm.
type Postgres struct {
	db *gorm.DB
}

var _ BatchJournal = (*Postgres)(nil)

// OpenPostgres connects to dsn and migrates the command_records table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgres(db)
}

// NewPostgres wraps an existing connection.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&commandRecord{}); err != nil {
		return nil, fmt.Errorf("migrate command_records: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, r Record) error {
	row := toRow(r)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save command record: %w", err)
	}
	return nil
}

// SaveBatch inserts all records in one transaction.
func (p *Postgres) SaveBatch(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]commandRecord, len(batch))
	for i, r := range batch {
		rows[i] = toRow(r)
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert command records: %w", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = DefaultSize
	}
	var rows []commandRecord
	if err := p.db.WithContext(ctx).Order("id desc").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list command records: %w", err)
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
