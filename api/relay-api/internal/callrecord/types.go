// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_callrecord

import (
	"time"

	"gorm.io/gorm"
)

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// CallRecord is the durable per-call row. Created when a call is initiated
// or its first status callback arrives, finalized by the post-call
// dispatcher with artifact paths and the extracted profile.
//
// Status callbacks from the telephony provider are asynchronous and can
// arrive after the media stream has ended, so rows are only ever updated,
// never deleted during the call lifecycle.
type CallRecord struct {
	Id              uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CallID          string    `json:"callId" gorm:"column:call_id;type:varchar(64);not null;uniqueIndex"`
	PhoneNumber     string    `json:"phoneNumber" gorm:"column:phone_number;type:varchar(50);not null;default:''"`
	Direction       string    `json:"direction" gorm:"column:direction;type:varchar(20);not null;default:''"`
	Status          string    `json:"status" gorm:"column:status;type:varchar(20);not null;default:''"`
	Transferred     bool      `json:"transferred" gorm:"column:transferred;not null;default:false"`
	StartedAt       time.Time `json:"startedAt" gorm:"column:started_at;default:null"`
	EndedAt         time.Time `json:"endedAt" gorm:"column:ended_at;default:null"`
	DurationSeconds int       `json:"durationSeconds" gorm:"column:duration_seconds;not null;default:0"`
	RecordingPath   string    `json:"recordingPath" gorm:"column:recording_path;type:text;not null;default:''"`
	TranscriptPath  string    `json:"transcriptPath" gorm:"column:transcript_path;type:text;not null;default:''"`
	ProfileJSON     string    `json:"profileJson" gorm:"column:profile_json;type:text;not null;default:''"`
	CreatedDate     time.Time `json:"createdDate" gorm:"column:created_date;not null;<-:create"`
	UpdatedDate     time.Time `json:"updatedDate" gorm:"column:updated_date;default:null"`
}

func (CallRecord) TableName() string {
	return "call_records"
}

func (cr *CallRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if cr.CreatedDate.IsZero() {
		cr.CreatedDate = time.Now()
	}
	return nil
}
