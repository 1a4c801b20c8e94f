package health

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

// IntegrityJob runs SQLite's PRAGMA integrity_check against every
// registered store each cycle. A failure is treated as critical — the
// platform cannot auto-recover from a corrupted store, so the cycle
// returns an error rather than continuing past it.
type IntegrityJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewIntegrityJob builds an IntegrityJob over the given named databases.
func NewIntegrityJob(databases map[string]*database.DB, log zerolog.Logger) *IntegrityJob {
	return &IntegrityJob{databases: databases, log: log.With().Str("component", "integrity_check").Logger()}
}

// Name satisfies scheduler.Job.
func (j *IntegrityJob) Name() string { return "integrity_check" }

// Run checks every registered database in turn, stopping at the first
// corrupted one.
func (j *IntegrityJob) Run() error {
	for name, db := range j.databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("database not initialized, skipping")
			continue
		}
		if err := checkIntegrity(db.Conn()); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}
		j.log.Debug().Str("database", name).Msg("integrity OK")
	}
	j.log.Info().Msg("all databases passed integrity check")
	return nil
}

func checkIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}
	return nil
}
