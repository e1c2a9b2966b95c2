package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/global-done/pkg/model"
)

// BenchRun represents the bench_run table: one row per (run, mode).
type BenchRun struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID      string    `gorm:"column:run_uuid;type:varchar(64);index"`
	Mode         string    `gorm:"column:mode;type:varchar(32)"`
	NPEs         int       `gorm:"column:npes"`
	LeafSize     int       `gorm:"column:leaf_size"`
	BranchFactor int       `gorm:"column:branch_factor"`
	Policy       string    `gorm:"column:policy;type:varchar(32)"`
	Broadcast    string    `gorm:"column:broadcast;type:varchar(32)"`
	Episodes     int       `gorm:"column:episodes"`
	MinUs        int64     `gorm:"column:min_us"`
	AvgUs        float64   `gorm:"column:avg_us"`
	MaxUs        int64     `gorm:"column:max_us"`
	Detail       JSONField `gorm:"column:detail;type:json"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for BenchRun.
func (BenchRun) TableName() string {
	return "bench_run"
}

// ToModel converts BenchRun to model.RunRecord. A malformed detail column
// is treated as absent rather than failing the read.
func (r *BenchRun) ToModel() *model.RunRecord {
	var durations []int64
	if len(r.Detail) > 0 {
		_ = json.Unmarshal(r.Detail, &durations)
	}
	return &model.RunRecord{
		ID:           r.ID,
		RunUUID:      r.RunUUID,
		Mode:         model.Mode(r.Mode),
		NPEs:         r.NPEs,
		LeafSize:     r.LeafSize,
		BranchFactor: r.BranchFactor,
		Policy:       model.Policy(r.Policy),
		Broadcast:    model.Broadcast(r.Broadcast),
		Episodes:     r.Episodes,
		MinUs:        r.MinUs,
		AvgUs:        r.AvgUs,
		MaxUs:        r.MaxUs,
		DurationsUs:  durations,
		CreatedAt:    r.CreatedAt,
	}
}

// fromModel builds the persisted row for a run record.
func fromModel(rec *model.RunRecord) *BenchRun {
	var detail JSONField
	if len(rec.DurationsUs) > 0 {
		raw, err := json.Marshal(rec.DurationsUs)
		if err == nil {
			detail = JSONField(raw)
		}
	}
	return &BenchRun{
		RunUUID:      rec.RunUUID,
		Mode:         string(rec.Mode),
		NPEs:         rec.NPEs,
		LeafSize:     rec.LeafSize,
		BranchFactor: rec.BranchFactor,
		Policy:       string(rec.Policy),
		Broadcast:    string(rec.Broadcast),
		Episodes:     rec.Episodes,
		MinUs:        rec.MinUs,
		AvgUs:        rec.AvgUs,
		MaxUs:        rec.MaxUs,
		Detail:       detail,
	}
}

// JSONField handles JSON columns across drivers.
type JSONField json.RawMessage

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSONField(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}
