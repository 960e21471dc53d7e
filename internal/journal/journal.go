package journal

import (
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/conn"
)

// DealRecord is the persisted shape of a placed deal and its outcome.
type DealRecord struct {
	ID        int64     `gorm:"primaryKey"`
	AssetID   int       `gorm:"index"`
	Direction string    `gorm:"size:8"`
	Amount    float64   ``
	Strike    int64     ``
	Status    string    `gorm:"size:16;index"`
	Result    string    `gorm:"size:8"`
	Profit    float64   ``
	PlacedAt  time.Time ``
	ClosedAt  *time.Time
}

// Journal persists deal placements and outcomes. A nil Journal is a
// no-op so callers never branch on whether persistence is configured.
type Journal struct {
	client *conn.Client
}

// New opens the journal database and migrates the record table.
func New(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}

	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	if err := client.DB().AutoMigrate(&DealRecord{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal")
	}
	return &Journal{client: client}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.client.Close()
}

// RecordPlaced stores a freshly confirmed deal.
func (j *Journal) RecordPlaced(deal model.Deal) error {
	if j == nil {
		return nil
	}

	record := DealRecord{
		ID:        deal.ID,
		AssetID:   deal.AssetID,
		Direction: deal.Direction.Wire(),
		Amount:    deal.Amount,
		Strike:    deal.StrikeTime,
		Status:    deal.Status.String(),
		PlacedAt:  time.Now(),
	}
	return j.client.DB().Create(&record).Error
}

// RecordOutcome marks a deal terminal with its result.
func (j *Journal) RecordOutcome(id int64, status enum.DealStatus, result model.DealResult) error {
	if j == nil {
		return nil
	}

	now := time.Now()
	return j.client.DB().Model(&DealRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    status.String(),
			"result":    result.Result.String(),
			"profit":    result.Profit,
			"closed_at": &now,
		}).Error
}

// List returns the most recent records, newest first.
func (j *Journal) List(limit int) ([]DealRecord, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	var records []DealRecord
	err := j.client.DB().
		Order("placed_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return records, nil
}
