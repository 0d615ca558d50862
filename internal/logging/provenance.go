package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// fixed-width, matching the snapshot store
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.ProfileID == "" {
		return fmt.Errorf("log decision: empty profile id")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (profile_id, version_id, trigger_type, signals_json, record_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ProfileID,
		nullIfEmpty(entry.VersionID),
		entry.TriggerType,
		nullIfEmpty(entry.SignalsJSON),
		nullIfEmpty(entry.RecordJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// LogCycle marshals rec into the entry's RecordJSON and writes it.
func LogCycle(db *sql.DB, entry ProvenanceEntry, rec CycleRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cycle record: %w", err)
	}
	entry.RecordJSON = string(b)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = rec.At
	}
	return LogDecision(db, entry)
}
// #endregion log-decision

// #region read-cycles
// Cycles returns the decoded cycle records of a profile, oldest first.
// Rows written without a record are skipped.
func Cycles(db *sql.DB, profileID string) ([]CycleRecord, error) {
	rows, err := db.Query(
		`SELECT record_json FROM provenance_log
		 WHERE profile_id = ? AND record_json IS NOT NULL
		 ORDER BY id`, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var rec CycleRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal cycle record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
// #endregion read-cycles

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
