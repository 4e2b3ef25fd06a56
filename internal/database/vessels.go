// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GYulius/SoWR-sub000/internal/metrics"
	"github.com/GYulius/SoWR-sub000/internal/models"
)

// ErrVesselNotFound is returned when a vessel_id has no durable record.
var ErrVesselNotFound = errors.New("vessel not found")

// FindOrCreateVessel returns the durable record for vesselID, creating it on
// first sighting. The insert races safely against concurrent workers: the
// UNIQUE constraint on vessel_id makes at most one insert win, and every
// loser re-reads the winner's row.
func (db *DB) FindOrCreateVessel(ctx context.Context, attrs models.VesselAttributes) (*models.Vessel, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if v, err := db.getVessel(ctx, attrs.VesselID); err == nil {
		return v, false, nil
	} else if !errors.Is(err, ErrVesselNotFound) {
		return nil, false, err
	}

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO vessels (id, vessel_id, name, operator, capacity, secondary_id, call_sign, tracking_enabled, tracking_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?)
		ON CONFLICT (vessel_id) DO NOTHING`,
		uuid.New(), attrs.VesselID, attrs.Name, attrs.Operator, capacityValue(attrs.Capacity),
		attrs.SecondaryID, attrs.CallSign, string(models.StatusTracked),
		time.Now().UTC(), time.Now().UTC())
	metrics.RecordDBQuery("insert", "vessels", time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert vessel %s: %w", attrs.VesselID, err)
	}

	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	v, err := db.getVessel(ctx, attrs.VesselID)
	if err != nil {
		return nil, false, err
	}
	return v, created, nil
}

// GetVessel returns the durable record for vesselID.
func (db *DB) GetVessel(ctx context.Context, vesselID string) (*models.Vessel, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.getVessel(ctx, vesselID)
}

func (db *DB) getVessel(ctx context.Context, vesselID string) (*models.Vessel, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, vessel_id, name, operator, capacity, secondary_id, call_sign,
		       tracking_enabled, current_latitude, current_longitude, current_speed,
		       current_course, last_update_at, tracking_status, created_at, updated_at
		FROM vessels WHERE vessel_id = ?`, vesselID)

	v, err := scanVessel(row)
	metrics.RecordDBQuery("select", "vessels", time.Since(start), ignoreNotFound(err))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVesselNotFound
		}
		return nil, fmt.Errorf("failed to query vessel %s: %w", vesselID, err)
	}
	return v, nil
}

// InsertPosition appends one history entry. History is the primary write of
// the processing path; a failure here is retryable and must abort the rest
// of the message's processing.
func (db *DB) InsertPosition(ctx context.Context, rep *models.PositionReport) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO position_history (id, vessel_ref, vessel_id, name, latitude, longitude,
			speed, course, heading, vessel_type, destination, eta,
			secondary_id, call_sign, station_range, signal_quality,
			data_source, recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.VesselRef, rep.VesselID, rep.Name,
		rep.Latitude, rep.Longitude, rep.Speed, rep.Course,
		rep.Heading, rep.VesselType, rep.Destination, rep.ETA,
		rep.SecondaryID, rep.CallSign, rep.StationRange,
		string(rep.SignalQuality), string(rep.DataSource),
		rep.RecordedAt.UTC(), rep.CreatedAt.UTC())
	metrics.RecordDBQuery("insert", "position_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert position for %s: %w", rep.VesselID, err)
	}
	return nil
}

// UpdateLiveState overwrites the vessel's live fields only when the message
// is not older than the stored last_update_at. The timestamp guard in the
// WHERE clause is the compare-and-swap that keeps live state monotonic per
// vessel without any lock in Go; a false return means the message lost the
// race or arrived out of order.
func (db *DB) UpdateLiveState(ctx context.Context, vesselID string, state models.LiveState) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE vessels
		SET current_latitude = ?, current_longitude = ?, current_speed = ?,
		    current_course = ?, tracking_status = ?, last_update_at = ?, updated_at = ?
		WHERE vessel_id = ?
		  AND (last_update_at IS NULL OR last_update_at <= ?)`,
		state.Latitude, state.Longitude, state.Speed, state.Course,
		string(state.Status), state.RecordedAt.UTC(), time.Now().UTC(),
		vesselID, state.RecordedAt.UTC())
	metrics.RecordDBQuery("update", "vessels", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to update live state for %s: %w", vesselID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for %s: %w", vesselID, err)
	}
	return n > 0, nil
}

// StaleVessels returns vessels whose last update is older than olderThan and
// whose status is not already OFFLINE. Vessels that never reported keep a
// NULL last_update_at and are picked up by their creation time instead.
func (db *DB) StaleVessels(ctx context.Context, olderThan time.Time) ([]*models.Vessel, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, vessel_id, name, operator, capacity, secondary_id, call_sign,
		       tracking_enabled, current_latitude, current_longitude, current_speed,
		       current_course, last_update_at, tracking_status, created_at, updated_at
		FROM vessels
		WHERE tracking_enabled
		  AND tracking_status != ?
		  AND tracking_status != ?
		  AND COALESCE(last_update_at, created_at) < ?
		ORDER BY last_update_at`,
		string(models.StatusOffline), string(models.StatusNoSignal), olderThan.UTC())
	metrics.RecordDBQuery("select", "vessels", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale vessels: %w", err)
	}
	defer closeQuietly(rows)

	var stale []*models.Vessel
	for rows.Next() {
		v, err := scanVessel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale vessel: %w", err)
		}
		stale = append(stale, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale vessels: %w", err)
	}
	return stale, nil
}

// MarkNoSignal demotes one vessel to NO_SIGNAL. The freshness re-check in the
// WHERE clause makes the sweep tolerate a concurrent processor write: a
// vessel that received a message after the sweep's read keeps its fresh
// status. Returns whether the demotion was applied.
func (db *DB) MarkNoSignal(ctx context.Context, vesselID string, olderThan time.Time) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE vessels
		SET tracking_status = ?, updated_at = ?
		WHERE vessel_id = ?
		  AND tracking_status != ?
		  AND COALESCE(last_update_at, created_at) < ?`,
		string(models.StatusNoSignal), time.Now().UTC(),
		vesselID, string(models.StatusOffline), olderThan.UTC())
	metrics.RecordDBQuery("update", "vessels", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to mark vessel %s stale: %w", vesselID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for %s: %w", vesselID, err)
	}
	return n > 0, nil
}

// CountVessels returns the number of durable vessel records, used by the
// health endpoint.
func (db *DB) CountVessels(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM vessels`).Scan(&n)
	metrics.RecordDBQuery("select", "vessels", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count vessels: %w", err)
	}
	return n, nil
}

// CountPositions returns the number of history rows.
func (db *DB) CountPositions(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM position_history`).Scan(&n)
	metrics.RecordDBQuery("select", "position_history", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return n, nil
}

// VesselHistory returns the most recent history entries for one vessel,
// newest first.
func (db *DB) VesselHistory(ctx context.Context, vesselID string, limit int) ([]*models.PositionReport, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, vessel_ref, vessel_id, name, latitude, longitude, speed, course,
		       heading, vessel_type, destination, eta,
		       secondary_id, call_sign, station_range, signal_quality, data_source,
		       recorded_at, created_at
		FROM position_history
		WHERE vessel_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, vesselID, limit)
	metrics.RecordDBQuery("select", "position_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", vesselID, err)
	}
	defer closeQuietly(rows)

	var reports []*models.PositionReport
	for rows.Next() {
		rep := &models.PositionReport{}
		var quality, source string
		if err := rows.Scan(&rep.ID, &rep.VesselRef, &rep.VesselID, &rep.Name,
			&rep.Latitude, &rep.Longitude, &rep.Speed, &rep.Course,
			&rep.Heading, &rep.VesselType, &rep.Destination, &rep.ETA,
			&rep.SecondaryID, &rep.CallSign, &rep.StationRange,
			&quality, &source, &rep.RecordedAt, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rep.SignalQuality = models.SignalQuality(quality)
		rep.DataSource = models.DataSource(source)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history for %s: %w", vesselID, err)
	}
	return reports, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVessel(s scanner) (*models.Vessel, error) {
	v := &models.Vessel{}
	var capacity sql.NullInt64
	var lastUpdate sql.NullTime
	var status string

	err := s.Scan(&v.ID, &v.VesselID, &v.Name, &v.Operator, &capacity,
		&v.SecondaryID, &v.CallSign, &v.TrackingEnabled,
		&v.CurrentLatitude, &v.CurrentLongitude, &v.CurrentSpeed, &v.CurrentCourse,
		&lastUpdate, &status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if capacity.Valid {
		v.Capacity = int(capacity.Int64)
	}
	if lastUpdate.Valid {
		at := lastUpdate.Time.UTC()
		v.LastUpdateAt = &at
	}
	v.TrackingStatus = models.TrackingStatus(status)
	return v, nil
}

func capacityValue(c *int) interface{} {
	if c == nil {
		return nil
	}
	return *c
}

// ignoreNotFound keeps expected no-row lookups out of the error counter.
func ignoreNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
