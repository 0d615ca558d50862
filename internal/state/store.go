package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNoSnapshot is returned when a profile has no active version yet.
	ErrNoSnapshot = errors.New("state: no snapshot")
	// ErrStaleParent is returned by CommitSnapshot when another writer moved
	// the active pointer since the caller read it.
	ErrStaleParent = errors.New("state: stale parent")
	// ErrVersionNotFound is returned for unknown or foreign version IDs.
	ErrVersionNotFound = errors.New("state: version not found")
)

// fixed-width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshot_versions (
	version_id    TEXT PRIMARY KEY,
	profile_id    TEXT NOT NULL,
	parent_id     TEXT,
	snapshot_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES snapshot_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_versions_profile
	ON snapshot_versions(profile_id, created_at);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id    TEXT NOT NULL,
	version_id    TEXT,
	trigger_type  TEXT NOT NULL,
	signals_json  TEXT,
	record_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	profile_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);
`
// #endregion schema

// #region store-struct
// Store keeps a versioned snapshot history per profile in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time; concurrent profiles queue on the pool
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the provenance writer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region get-current
// GetCurrent reads the active version of a profile. It returns ErrNoSnapshot
// for a profile that has never been committed.
func (s *Store) GetCurrent(profileID string) (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(
		`SELECT version_id FROM active_snapshot WHERE profile_id = ?`, profileID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("profile %s: %w", profileID, ErrNoSnapshot)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a version by ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, profile_id, parent_id, snapshot_json, created_at, metrics_json
		 FROM snapshot_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, ErrVersionNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}
// #endregion get-version

// #region commit-snapshot
// CommitSnapshot inserts a new version and moves the profile's active pointer
// to it in one transaction. rec.ParentID must name the version that is active
// at commit time (empty for a profile's first version); otherwise nothing is
// written and ErrStaleParent is returned.
func (s *Store) CommitSnapshot(rec SnapshotRecord) error {
	if rec.ProfileID == "" {
		return errors.New("commit: empty profile id")
	}
	snapJSON, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var active sql.NullString
	err = tx.QueryRow(
		`SELECT version_id FROM active_snapshot WHERE profile_id = ?`, rec.ProfileID,
	).Scan(&active)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read active: %w", err)
	}
	if active.String != rec.ParentID {
		return fmt.Errorf("commit %s on %s (active %s): %w", rec.VersionID, rec.ParentID, active.String, ErrStaleParent)
	}

	_, err = tx.Exec(
		`INSERT INTO snapshot_versions (version_id, profile_id, parent_id, snapshot_json, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.ProfileID, nullIfEmpty(rec.ParentID), string(snapJSON),
		rec.CreatedAt.UTC().Format(timeLayout), nullIfEmpty(rec.MetricsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (profile_id, version_id) VALUES (?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.ProfileID, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
// #endregion commit-snapshot

// #region rollback
// Rollback points a profile back at one of its earlier versions. History is
// kept; the next commit descends from the rolled-back version.
func (s *Store) Rollback(profileID, targetVersionID string) error {
	var owner string
	err := s.db.QueryRow(
		`SELECT profile_id FROM snapshot_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != profileID) {
		return fmt.Errorf("rollback %s: %w", targetVersionID, ErrVersionNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_snapshot (profile_id, version_id) VALUES (?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET version_id = excluded.version_id`,
		profileID, targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list
// ListVersions returns a profile's most recent versions, newest first.
func (s *Store) ListVersions(profileID string, limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, profile_id, parent_id, snapshot_json, created_at, metrics_json
		 FROM snapshot_versions WHERE profile_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithProvenance is ListVersions joined with the latest
// provenance row of each version.
func (s *Store) ListVersionsWithProvenance(profileID string, limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.profile_id, v.parent_id, v.snapshot_json, v.created_at, v.metrics_json,
		        p.trigger_type, p.decision, p.reason
		 FROM snapshot_versions v
		 LEFT JOIN provenance_log p ON p.id = (
		     SELECT MAX(id) FROM provenance_log WHERE version_id = v.version_id
		 )
		 WHERE v.profile_id = ?
		 ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var vp VersionWithProvenance
		var trigger, decision, reason sql.NullString
		rec, err := scanRecord(rows, &trigger, &decision, &reason)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vp.SnapshotRecord = rec
		vp.TriggerType, vp.Decision, vp.Reason = trigger.String, decision.String, reason.String
		out = append(out, vp)
	}
	return out, rows.Err()
}

// ListProfiles returns every profile with an active version, sorted.
func (s *Store) ListProfiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT profile_id FROM active_snapshot ORDER BY profile_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
// #endregion list

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, extra ...any) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID, metricsJSON sql.NullString
	var snapJSON, createdStr string

	dest := append([]any{&rec.VersionID, &rec.ProfileID, &parentID, &snapJSON, &createdStr, &metricsJSON}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return SnapshotRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.MetricsJSON = metricsJSON.String
	if err := json.Unmarshal([]byte(snapJSON), &rec.Snapshot); err != nil {
		return SnapshotRecord{}, fmt.Errorf("unmarshal snapshot %s: %w", rec.VersionID, err)
	}
	created, err := time.Parse(timeLayout, createdStr)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("parse created_at %q: %w", createdStr, err)
	}
	rec.CreatedAt = created
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
