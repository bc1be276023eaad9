// Package commands is the per-device FIFO of pending operator commands.
// Enqueue appends, DrainNextPending atomically claims the oldest pending
// command. Draining is the only read-and-mutate operation in the system and
// must be exclusive per device: two concurrent check-ins from one device
// must never receive the same command, nor different commands out of order.
package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

// ErrUnknownCommandType rejects an enqueue with a type outside the
// enumerated set.
var ErrUnknownCommandType = errors.New("unknown command type")

// Queue persists and drains device commands.
type Queue struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends a command to the tail of the device's pending queue.
func (q *Queue) Enqueue(ctx context.Context, device *models.Device, cmdType models.CommandType, payload string) (*models.DeviceCommand, error) {
	if !cmdType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommandType, cmdType)
	}
	cmd := models.DeviceCommand{
		DeviceID:    device.ID,
		CommandType: cmdType,
		Payload:     payload,
	}
	if err := q.db.WithContext(ctx).Create(&cmd).Error; err != nil {
		return nil, err
	}
	return &cmd, nil
}

// DrainNextPending claims the single oldest queued command for the device,
// marks it executed and returns it, or returns nil if nothing is queued.
//
// The row is locked with SELECT ... FOR UPDATE inside the transaction; a
// concurrent drain for the same device blocks on the lock and, once the
// first transaction commits, re-evaluates the executed predicate and moves
// on to the next command. That gives at-most-once delivery and strict FIFO
// without any cross-device coordination.
func (q *Queue) DrainNextPending(ctx context.Context, device *models.Device) (*models.DeviceCommand, error) {
	var claimed *models.DeviceCommand

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cmd models.DeviceCommand
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ? AND executed = ?", device.ID, false).
			Order("created_at ASC, id ASC").
			Limit(1).
			Find(&cmd)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		now := time.Now().UTC()
		if err := tx.Model(&cmd).
			Updates(map[string]interface{}{"executed": true, "executed_at": now}).Error; err != nil {
			return err
		}
		cmd.Executed = true
		cmd.ExecutedAt = &now
		claimed = &cmd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// History returns the device's commands, most recent first. Ties on
// created_at break by insertion order.
func (q *Queue) History(ctx context.Context, device *models.Device, limit int) ([]models.DeviceCommand, error) {
	if limit <= 0 {
		limit = 20
	}
	var cmds []models.DeviceCommand
	err := q.db.WithContext(ctx).
		Where("device_id = ?", device.ID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&cmds).Error
	return cmds, err
}

// PendingCount reports how many commands are still queued for the device.
func (q *Queue) PendingCount(ctx context.Context, device *models.Device) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&models.DeviceCommand{}).
		Where("device_id = ? AND executed = ?", device.ID, false).
		Count(&n).Error
	return n, err
}
