// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_callrecord

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/rapidaai/callbridge/pkg/commons"
)

// Store persists call records across the call lifecycle.
type Store interface {
	// Save creates a fresh record. Fails on a duplicate call identifier.
	Save(ctx context.Context, record *CallRecord) error

	// Get retrieves a record by call identifier regardless of its status.
	Get(ctx context.Context, callID string) (*CallRecord, error)

	// UpdateStatus patches the lifecycle status, creating a minimal row if
	// none exists yet. Status callbacks can race the call-creation path.
	UpdateStatus(ctx context.Context, callID, status string) error

	// Finalize writes the post-call outcome onto an existing record,
	// creating it first when the call arrived without an initiation row.
	Finalize(ctx context.Context, record *CallRecord) error

	// Recent lists the newest records, most recent first.
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
}

type sqliteStore struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewStore opens (or creates) the record database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func NewStore(logger commons.Logger, path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open call record database at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CallRecord{}); err != nil {
		return nil, fmt.Errorf("unable to migrate call record schema: %w", err)
	}
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Save(ctx context.Context, record *CallRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save call record %s: %w", record.CallID, err)
	}
	s.logger.Debugf("saved call record: callId=%s, direction=%s", record.CallID, record.Direction)
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, callID string) (*CallRecord, error) {
	var record CallRecord
	if err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("call record not found: %s: %w", callID, err)
	}
	return &record, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, callID, status string) error {
	result := s.db.WithContext(ctx).Model(&CallRecord{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"status":       status,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update status on call record %s: %w", callID, result.Error)
	}
	if result.RowsAffected == 0 {
		record := &CallRecord{CallID: callID, Status: status}
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return fmt.Errorf("failed to create call record %s from status callback: %w", callID, err)
		}
	}
	s.logger.Debugf("call record status updated: callId=%s, status=%s", callID, status)
	return nil
}

func (s *sqliteStore) Finalize(ctx context.Context, record *CallRecord) error {
	result := s.db.WithContext(ctx).Model(&CallRecord{}).
		Where("call_id = ?", record.CallID).
		Updates(map[string]interface{}{
			"phone_number":     record.PhoneNumber,
			"transferred":      record.Transferred,
			"started_at":       record.StartedAt,
			"ended_at":         record.EndedAt,
			"duration_seconds": record.DurationSeconds,
			"recording_path":   record.RecordingPath,
			"transcript_path":  record.TranscriptPath,
			"profile_json":     record.ProfileJSON,
			"updated_date":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize call record %s: %w", record.CallID, result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return fmt.Errorf("failed to create call record %s at finalize: %w", record.CallID, err)
		}
	}
	s.logger.Infof("call record finalized: callId=%s, duration=%ds", record.CallID, record.DurationSeconds)
	return nil
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []CallRecord
	if err := s.db.WithContext(ctx).
		Order("created_date DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	return records, nil
}
