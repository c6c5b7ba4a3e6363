// Package archive implements monitor's append-only telemetry and status
// tables plus their atomically-replaced JSON snapshot files.
//
// Grounded on caen_tools/MonitorService/monclass.py's Monitor
// (sqlite3 `data` table, insert-and-query shape), ported from raw
// sqlite3 to gorm.io/gorm + the pure-Go glebarez/sqlite driver so the
// service stays cgo-free.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
)

// ParamRow is one channel telemetry sample, normalised to
// (alias, VMon, IMonH or IMonL by ImonRange, measurement_time, ChStatus).
type ParamRow struct {
	ID              uint `gorm:"primaryKey"`
	Channel         string
	VMon            float64
	Current         float64
	ChStatus        int
	MeasurementTime int64 `gorm:"index"`
}

// StatusRow is one status-journal entry.
type StatusRow struct {
	ID        uint `gorm:"primaryKey"`
	IsOK      bool
	Descr     string
	Timestamp int64 `gorm:"index"`
}

// Archive is the append-only store send_params/send_status write to and
// get_params/get_status read from, plus the snapshot files both
// operations keep fresh.
type Archive struct {
	db *gorm.DB

	paramFile  string
	statusFile string

	rotateEvery int
	insertCount int
}

// Open migrates the schema and prepares the snapshot file paths.
// rotateEvery is how many inserts elapse between 24h-retention sweeps.
func Open(db *gorm.DB, paramFile, statusFile string, rotateEvery int) (*Archive, error) {
	if err := db.AutoMigrate(&ParamRow{}, &StatusRow{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Archive{db: db, paramFile: paramFile, statusFile: statusFile, rotateEvery: rotateEvery}, nil
}

// AddParams appends one row per channel and refreshes the param
// snapshot file.
func (a *Archive) AddParams(rows []ParamRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := a.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("archive: insert params: %w", err)
	}

	snapshot := map[string]interface{}{}
	for _, r := range rows {
		snapshot["DCV"+r.Channel] = r.VMon
		snapshot["DCC"+r.Channel] = r.Current
	}
	if err := writeSnapshot(a.paramFile, snapshot); err != nil {
		return err
	}

	a.maybeRotate()
	return nil
}

// AddStatus appends one status row and refreshes the status snapshot.
func (a *Archive) AddStatus(row StatusRow) error {
	if err := a.db.Create(&row).Error; err != nil {
		return fmt.Errorf("archive: insert status: %w", err)
	}
	snapshot := map[string]interface{}{"is_ok": row.IsOK, "description": row.Descr, "timestamp": row.Timestamp}
	if err := writeSnapshot(a.statusFile, snapshot); err != nil {
		return err
	}
	a.maybeRotate()
	return nil
}

// GetParams returns rows in [start, end), newest first.
func (a *Archive) GetParams(start, end int64) ([]ParamRow, error) {
	var rows []ParamRow
	err := a.db.Where("measurement_time >= ? AND measurement_time < ?", start, end).
		Order("measurement_time DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: query params: %w", err)
	}
	return rows, nil
}

// GetStatus returns rows in [start, end), newest first.
func (a *Archive) GetStatus(start, end int64) ([]StatusRow, error) {
	var rows []StatusRow
	err := a.db.Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: query status: %w", err)
	}
	return rows, nil
}

// maybeRotate deletes rows older than 24h every rotateEvery inserts.
func (a *Archive) maybeRotate() {
	a.insertCount++
	if a.rotateEvery <= 0 || a.insertCount < a.rotateEvery {
		return
	}
	a.insertCount = 0
	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	a.db.Where("measurement_time < ?", cutoff).Delete(&ParamRow{})
	a.db.Where("timestamp < ?", cutoff).Delete(&StatusRow{})
}

// writeSnapshot replaces path atomically: write to a temp file in the
// same directory, then rename, so readers never observe a torn file.
func writeSnapshot(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("archive: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("archive: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("archive: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: rename snapshot: %w", err)
	}
	return nil
}
