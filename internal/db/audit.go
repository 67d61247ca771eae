package db

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

const (
	defaultAuditBuffer = 1024
	auditWriteTimeout  = 5 * time.Second
)

// ErrAuditQueueFull is returned by Record when the event was dropped.
var ErrAuditQueueFull = errors.New("audit queue full, event dropped")

// AuditLog persists AuthEvents with a retention window. Record only
// enqueues; the worker started by Start does the inserts.
type AuditLog struct {
	DB            *gorm.DB
	RetentionDays int

	// Write stores one event. Defaults to an insert through DB.
	Write func(ctx context.Context, ev AuthEvent) error

	queue chan AuthEvent
}

// NewAuditLog returns an audit log with a queue of buffer events.
func NewAuditLog(db *gorm.DB, retentionDays, buffer int) *AuditLog {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	a := &AuditLog{
		DB:            db,
		RetentionDays: retentionDays,
		queue:         make(chan AuthEvent, buffer),
	}
	a.Write = a.insert
	return a
}

// Record stamps CreatedAt and ExpiresAt when unset and queues ev. It never
// blocks: when the queue is full the event is dropped.
func (a *AuditLog) Record(_ context.Context, ev AuthEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if ev.ExpiresAt == nil && a.RetentionDays > 0 {
		t := ev.CreatedAt.Add(time.Duration(a.RetentionDays) * 24 * time.Hour)
		ev.ExpiresAt = &t
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrAuditQueueFull
	}
}

// Start launches the goroutine that drains the queue until ctx is done.
func (a *AuditLog) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-a.queue:
				wctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
				if err := a.Write(wctx, ev); err != nil {
					log.Printf("audit write failed for %s: %v", ev.KeyID, err)
				}
				cancel()
			}
		}
	}()
}

func (a *AuditLog) insert(ctx context.Context, ev AuthEvent) error {
	return a.DB.WithContext(ctx).Create(&ev).Error
}

// RecentForKey returns up to limit events for keyID, newest first.
func (a *AuditLog) RecentForKey(ctx context.Context, keyID string, limit int) ([]AuthEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []AuthEvent
	err := a.DB.WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
