package replay

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/gate"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
)

// #region recorded

// Recorded is one ingest cycle read back from provenance_log.
type Recorded struct {
	Cycle    Cycle
	Raw      json.RawMessage // signals as stored, nil for an empty batch
	Decision string          // commit | reject | no_op
	Reason   string
	Record   *logging.CycleRecord
}

// ExpectedAction maps the recorded decision onto a replay action. A reject
// is attributed to the gate when the record says so, to eval otherwise.
func (r Recorded) ExpectedAction() string {
	if r.Decision != "reject" {
		return r.Decision
	}
	if r.Record != nil && r.Record.GateAction == gate.ActionReject {
		return "gate_reject"
	}
	return "eval_rollback"
}

// LoadRecorded reads a profile's ingest cycles in the order they ran. last
// keeps only the most recent N; zero keeps all.
func LoadRecorded(db *sql.DB, profileID string, last int) ([]Recorded, error) {
	rows, err := db.Query(
		`SELECT id, signals_json, record_json, decision, reason, created_at FROM provenance_log
		 WHERE profile_id = ? AND trigger_type = 'ingest' ORDER BY id ASC`, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var out []Recorded
	for rows.Next() {
		var (
			id                    int64
			sigJSON, recJSON, why sql.NullString
			decision, createdAt   string
		)
		if err := rows.Scan(&id, &sigJSON, &recJSON, &decision, &why, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse created_at: %w", id, err)
		}
		r := Recorded{
			Cycle:    Cycle{ID: fmt.Sprintf("prov-%d", id), At: at},
			Decision: decision,
			Reason:   why.String,
		}
		if sigJSON.String != "" {
			r.Raw = json.RawMessage(sigJSON.String)
			if r.Cycle.Signals, err = signals.UnmarshalBatch(r.Raw); err != nil {
				return nil, fmt.Errorf("row %d: %w", id, err)
			}
		}
		if recJSON.String != "" {
			var rec logging.CycleRecord
			if err := json.Unmarshal([]byte(recJSON.String), &rec); err == nil {
				r.Record = &rec
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out, nil
}

// Cycles extracts the replayable cycles.
func Cycles(recorded []Recorded) []Cycle {
	out := make([]Cycle, len(recorded))
	for i, r := range recorded {
		out[i] = r.Cycle
	}
	return out
}

// ToFixture turns recorded cycles into a fixture whose expectations are the
// recorded decisions.
func ToFixture(description string, recorded []Recorded) Fixture {
	f := Fixture{Description: description}
	for _, r := range recorded {
		raw := r.Raw
		if raw == nil {
			raw = json.RawMessage("[]")
		}
		f.Cycles = append(f.Cycles, FixtureCycle{CycleID: r.Cycle.ID, At: r.Cycle.At, Signals: raw})
		exp := FixtureExpectedResult{CycleID: r.Cycle.ID, Action: r.ExpectedAction()}
		if r.Record != nil {
			exp.GateAction = r.Record.GateAction
		}
		f.ExpectedResults = append(f.ExpectedResults, exp)
	}
	return f
}

// #endregion recorded
