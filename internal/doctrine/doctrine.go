// Package doctrine implements the Doctrine Keeper (§4.9): curates
// promotion/retirement of patterns from accumulated lesson strands and
// maintains the contraindication gate the Experiment Orchestrator checks
// before admitting new ideas.
package doctrine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
)

// Status is a doctrine entry's lifecycle state (§3.5).
type Status string

const (
	StatusProvisional     Status = "provisional"
	StatusAffirmed        Status = "affirmed"
	StatusRetired         Status = "retired"
	StatusContraindicated Status = "contraindicated"
)

// Thresholds configures the §4.9 status-transition rules and §6.6 defaults.
type Thresholds struct {
	MinEvidenceForAffirmation int
	AffirmSuccessRate         float64
	AffirmMaxFailureRate      float64
	RetireFailureRate         float64
	ContraindicatedFailureRate float64
}

// DefaultThresholds returns the spec's conservative defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinEvidenceForAffirmation:  10,
		AffirmSuccessRate:          0.7,
		AffirmMaxFailureRate:       0.3,
		RetireFailureRate:          0.7,
		ContraindicatedFailureRate: 0.8,
	}
}

// Entry is one doctrine entry (§3.5), keyed by (pattern_type, pattern_id).
type Entry struct {
	DoctrineID       string
	PatternType      string
	PatternID        string
	Status           Status
	EvidenceCount    int
	SuccessRate      float64
	FailureRate      float64
	WhyMap           WhyMap
	Contraindications []string
	Lineage          []string
	LastUpdated      time.Time
}

// deriveStatus applies §4.9's promotion rules in priority order:
// contraindicated is checked before retired, since a failure rate above
// the contraindication threshold also exceeds the retirement threshold.
func deriveStatus(t Thresholds, evidenceCount int, successRate, failureRate float64) Status {
	switch {
	case failureRate > t.ContraindicatedFailureRate:
		return StatusContraindicated
	case failureRate > t.RetireFailureRate:
		return StatusRetired
	case evidenceCount >= t.MinEvidenceForAffirmation && successRate > t.AffirmSuccessRate && failureRate < t.AffirmMaxFailureRate:
		return StatusAffirmed
	default:
		return StatusProvisional
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS doctrine_entries (
	doctrine_id       TEXT PRIMARY KEY,
	pattern_type      TEXT NOT NULL,
	pattern_id        TEXT NOT NULL,
	status            TEXT NOT NULL,
	evidence_count    INTEGER NOT NULL DEFAULT 0,
	success_rate      REAL NOT NULL DEFAULT 0,
	failure_rate      REAL NOT NULL DEFAULT 0,
	why_map           TEXT NOT NULL DEFAULT '{}',
	contraindications TEXT NOT NULL DEFAULT '[]',
	lineage           TEXT NOT NULL DEFAULT '[]',
	last_updated      TEXT NOT NULL,
	UNIQUE(pattern_type, pattern_id)
);
`

// Store is the doctrine_entries repository.
type Store struct {
	db *database.DB
}

// New opens the doctrine store at path.
func New(path string) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "doctrine"})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(schemaSQL); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database, for integrity checks and backups.
func (s *Store) DB() *database.DB { return s.db }

// Get fetches the entry for (patternType, patternID), if any.
func (s *Store) Get(patternType, patternID string) (Entry, bool, error) {
	row := s.db.QueryRow(`
		SELECT doctrine_id, pattern_type, pattern_id, status, evidence_count,
			success_rate, failure_rate, why_map, contraindications, lineage, last_updated
		FROM doctrine_entries WHERE pattern_type = ? AND pattern_id = ?`, patternType, patternID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var status, whyMapJSON, contraindicationsJSON, lineageJSON, lastUpdated string
	err := row.Scan(&e.DoctrineID, &e.PatternType, &e.PatternID, &status, &e.EvidenceCount,
		&e.SuccessRate, &e.FailureRate, &whyMapJSON, &contraindicationsJSON, &lineageJSON, &lastUpdated)
	if err != nil {
		return e, err
	}
	e.Status = Status(status)
	_ = json.Unmarshal([]byte(whyMapJSON), &e.WhyMap)
	_ = json.Unmarshal([]byte(contraindicationsJSON), &e.Contraindications)
	_ = json.Unmarshal([]byte(lineageJSON), &e.Lineage)
	e.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return e, nil
}

// ApplyLesson updates the entry's evidence count and rates on a new
// lesson, serialized via CAS on (doctrine_id, evidence_count) per §4.9's
// failure-semantics contract. success reports whether the lesson's
// outcome counted as a success.
func (s *Store) ApplyLesson(patternType, patternID string, success bool, delta WhyMapDelta, t Thresholds) (Entry, error) {
	for attempt := 0; attempt < 5; attempt++ {
		entry, found, err := s.Get(patternType, patternID)
		if err != nil {
			return Entry{}, err
		}
		if !found {
			entry = Entry{
				DoctrineID:  fmt.Sprintf("doctrine-%s-%s", patternType, patternID),
				PatternType: patternType,
				PatternID:   patternID,
				Status:      StatusProvisional,
			}
		}

		prevCount := entry.EvidenceCount
		newCount := prevCount + 1

		// Incremental update of success/failure rate (running mean).
		successVal := 0.0
		if success {
			successVal = 1.0
		}
		entry.SuccessRate = (entry.SuccessRate*float64(prevCount) + successVal) / float64(newCount)
		entry.FailureRate = (entry.FailureRate*float64(prevCount) + (1 - successVal)) / float64(newCount)
		entry.EvidenceCount = newCount
		entry.WhyMap = entry.WhyMap.Merge(delta)
		entry.Status = deriveStatus(t, entry.EvidenceCount, entry.SuccessRate, entry.FailureRate)
		entry.LastUpdated = time.Now().UTC()

		ok, err := s.casUpsert(entry, prevCount, !found)
		if err != nil {
			return Entry{}, err
		}
		if ok {
			return entry, nil
		}
		// Lost the race to another concurrent lesson application; retry.
	}
	return Entry{}, fmt.Errorf("doctrine CAS contention exceeded retry bound for (%s, %s)", patternType, patternID)
}

func (s *Store) casUpsert(e Entry, expectedPrevCount int, insert bool) (bool, error) {
	whyMap, _ := json.Marshal(e.WhyMap)
	contraindications, _ := json.Marshal(e.Contraindications)
	lineage, _ := json.Marshal(e.Lineage)

	if insert {
		_, err := s.db.Exec(`
			INSERT INTO doctrine_entries (
				doctrine_id, pattern_type, pattern_id, status, evidence_count,
				success_rate, failure_rate, why_map, contraindications, lineage, last_updated
			) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			e.DoctrineID, e.PatternType, e.PatternID, string(e.Status), e.EvidenceCount,
			e.SuccessRate, e.FailureRate, string(whyMap), string(contraindications), string(lineage),
			e.LastUpdated.Format(time.RFC3339))
		if err != nil {
			return false, nil // unique constraint race: another writer inserted first
		}
		return true, nil
	}

	result, err := s.db.Exec(`
		UPDATE doctrine_entries SET
			status = ?, evidence_count = ?, success_rate = ?, failure_rate = ?,
			why_map = ?, contraindications = ?, lineage = ?, last_updated = ?
		WHERE doctrine_id = ? AND evidence_count = ?`,
		string(e.Status), e.EvidenceCount, e.SuccessRate, e.FailureRate,
		string(whyMap), string(contraindications), string(lineage), e.LastUpdated.Format(time.RFC3339),
		e.DoctrineID, expectedPrevCount)
	if err != nil {
		return false, fmt.Errorf("cas update doctrine entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// IsContraindicated satisfies the orchestrator's gating contract (§4.9).
func (s *Store) IsContraindicated(patternType, patternID string) (bool, error) {
	entry, found, err := s.Get(patternType, patternID)
	if err != nil || !found {
		return false, err
	}
	return entry.Status == StatusContraindicated, nil
}

// ContraindicationReasons returns the stored contraindication reasons.
func (s *Store) ContraindicationReasons(patternType, patternID string) ([]string, error) {
	entry, found, err := s.Get(patternType, patternID)
	if err != nil || !found {
		return nil, err
	}
	return entry.Contraindications, nil
}

// All returns every doctrine entry, used by curation passes and the
// inspection API.
func (s *Store) All() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT doctrine_id, pattern_type, pattern_id, status, evidence_count,
			success_rate, failure_rate, why_map, contraindications, lineage, last_updated
		FROM doctrine_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
