package strand

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/sentinel/internal/database"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS strands (
	id                 TEXT PRIMARY KEY,
	kind               TEXT NOT NULL,
	source_id          TEXT NOT NULL,
	symbol             TEXT NOT NULL DEFAULT '',
	timeframe          TEXT NOT NULL DEFAULT '',
	regime             TEXT NOT NULL DEFAULT '',
	session_bucket     TEXT NOT NULL DEFAULT '',
	tags               TEXT NOT NULL DEFAULT '[]',
	sig_sigma          REAL NOT NULL DEFAULT 0,
	sig_confidence     REAL NOT NULL DEFAULT 0,
	sig_direction      TEXT NOT NULL DEFAULT '',
	outcome_score      REAL NOT NULL DEFAULT 0,
	module_intelligence BLOB,
	cluster_key        TEXT NOT NULL DEFAULT '[]',
	braid_level        INTEGER NOT NULL DEFAULT 1,
	lesson             TEXT NOT NULL DEFAULT '',
	source_strand_ids  TEXT NOT NULL DEFAULT '[]',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strands_kind ON strands(kind);
CREATE INDEX IF NOT EXISTS idx_strands_source ON strands(source_id);
CREATE INDEX IF NOT EXISTS idx_strands_symbol ON strands(symbol);
CREATE INDEX IF NOT EXISTS idx_strands_created_at ON strands(created_at);
CREATE INDEX IF NOT EXISTS idx_strands_braid_level ON strands(braid_level);
`

// Store is the append-only Strand Store. Appends are serialized per
// partition key (kind, source_id) via an in-process mutex set.
// Consumed-flag flips go through CASConsume, which holds a per-strand
// in-process mutex and flips a flag only while it is still false, so
// braiders in this process can't double-consume a member. UpdateRollup
// itself is a plain read-modify-write with no compare step.
type Store struct {
	db *database.DB

	partitionMu sync.Mutex
	partitions  map[string]*sync.Mutex
}

// New opens (creating if necessary) the strand store at path.
func New(path string) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileLedger, Name: "strands"})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(schemaSQL); err != nil {
		return nil, err
	}
	return &Store{db: db, partitions: make(map[string]*sync.Mutex)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database, for integrity checks and backups.
func (s *Store) DB() *database.DB { return s.db }

func (s *Store) partitionLock(kind Kind, sourceID string) *sync.Mutex {
	key := string(kind) + "|" + sourceID
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()
	mu, ok := s.partitions[key]
	if !ok {
		mu = &sync.Mutex{}
		s.partitions[key] = mu
	}
	return mu
}

// Append assigns an id and timestamps and durably appends the strand,
// serialized against other appends sharing the same (kind, source_id)
// partition to preserve per-producer ordering.
func (s *Store) Append(st Strand) (string, error) {
	st.ClampSignal()

	mu := s.partitionLock(st.Kind, st.SourceID)
	mu.Lock()
	defer mu.Unlock()

	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	tags, err := json.Marshal(st.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	clusterKey, err := json.Marshal(st.ClusterKey)
	if err != nil {
		return "", fmt.Errorf("marshal cluster_key: %w", err)
	}
	sourceIDs, err := json.Marshal(st.SourceStrandIDs)
	if err != nil {
		return "", fmt.Errorf("marshal source_strand_ids: %w", err)
	}
	var moduleIntel []byte
	if st.ModuleIntelligence != nil {
		moduleIntel, err = msgpack.Marshal(st.ModuleIntelligence)
		if err != nil {
			return "", fmt.Errorf("marshal module_intelligence: %w", err)
		}
	}

	_, err = s.db.Exec(`
		INSERT INTO strands (
			id, kind, source_id, symbol, timeframe, regime, session_bucket, tags,
			sig_sigma, sig_confidence, sig_direction, outcome_score,
			module_intelligence, cluster_key, braid_level, lesson, source_strand_ids,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.ID, string(st.Kind), st.SourceID, st.Symbol, st.Timeframe, st.Regime, st.SessionBucket, string(tags),
		st.SigSigma, st.SigConfidence, string(st.SigDirection), st.OutcomeScore,
		moduleIntel, string(clusterKey), st.BraidLevel, st.Lesson, string(sourceIDs),
		st.CreatedAt.Format(time.RFC3339Nano), st.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("append strand: %w", err)
	}

	return st.ID, nil
}

// Scan selects strands matching filter, most-recent-first by default.
func (s *Store) Scan(f Filter) ([]Strand, error) {
	var where []string
	var args []interface{}

	if len(f.Kinds) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Kinds)), ",")
		where = append(where, "kind IN ("+placeholders+")")
		for _, k := range f.Kinds {
			args = append(args, string(k))
		}
	}
	if f.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Timeframe != "" {
		where = append(where, "timeframe = ?")
		args = append(args, f.Timeframe)
	}
	if f.TagPrefix != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+f.TagPrefix+"%")
	}
	if !f.CreatedAfter.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.CreatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, f.CreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	if f.BraidLevel > 0 {
		where = append(where, "braid_level = ?")
		args = append(args, f.BraidLevel)
	}
	if f.ClusterType != "" {
		if f.ConsumedOnDim != nil {
			consumed := "false"
			if *f.ConsumedOnDim {
				consumed = "true"
			}
			where = append(where, `EXISTS (
				SELECT 1 FROM json_each(cluster_key)
				WHERE json_extract(value, '$.cluster_type') = ?
				AND json_extract(value, '$.consumed') = `+consumed+`
			)`)
			args = append(args, f.ClusterType)
		} else {
			where = append(where, `EXISTS (
				SELECT 1 FROM json_each(cluster_key)
				WHERE json_extract(value, '$.cluster_type') = ?
			)`)
			args = append(args, f.ClusterType)
		}
	}

	order := "DESC"
	if strings.EqualFold(f.OrderByCreatedAt, "asc") {
		order = "ASC"
	}

	query := "SELECT id, kind, source_id, symbol, timeframe, regime, session_bucket, tags, " +
		"sig_sigma, sig_confidence, sig_direction, outcome_score, module_intelligence, " +
		"cluster_key, braid_level, lesson, source_strand_ids, created_at, updated_at FROM strands"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at " + order
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan strands: %w", err)
	}
	defer rows.Close()

	var out []Strand
	for rows.Next() {
		st, err := scanStrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStrand(rows *sql.Rows) (Strand, error) {
	var st Strand
	var tags, clusterKey, sourceIDs, createdAt, updatedAt string
	var moduleIntel []byte
	var kind, direction string

	err := rows.Scan(&st.ID, &kind, &st.SourceID, &st.Symbol, &st.Timeframe, &st.Regime, &st.SessionBucket,
		&tags, &st.SigSigma, &st.SigConfidence, &direction, &st.OutcomeScore, &moduleIntel,
		&clusterKey, &st.BraidLevel, &st.Lesson, &sourceIDs, &createdAt, &updatedAt)
	if err != nil {
		return st, fmt.Errorf("scan strand row: %w", err)
	}

	st.Kind = Kind(kind)
	st.SigDirection = Direction(direction)
	_ = json.Unmarshal([]byte(tags), &st.Tags)
	_ = json.Unmarshal([]byte(clusterKey), &st.ClusterKey)
	_ = json.Unmarshal([]byte(sourceIDs), &st.SourceStrandIDs)
	if len(moduleIntel) > 0 {
		st.ModuleIntelligence = map[string]interface{}{}
		_ = msgpack.Unmarshal(moduleIntel, &st.ModuleIntelligence)
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return st, nil
}

// Get fetches a single strand by id.
func (s *Store) Get(id string) (Strand, bool, error) {
	strands, err := s.Scan(Filter{})
	if err != nil {
		return Strand{}, false, err
	}
	for _, st := range strands {
		if st.ID == id {
			return st, true, nil
		}
	}
	return Strand{}, false, nil
}

// UpdateRollup applies patch to the mutable fields permitted by §3.1:
// outcome_score, per-dimension consumed flags, doctrine-rollup keys
// (merged into module_intelligence), and updated_at.
func (s *Store) UpdateRollup(id string, patch RollupPatch) error {
	rows, err := s.db.Query(`SELECT cluster_key, module_intelligence FROM strands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("read cluster_key: %w", err)
	}
	var clusterKeyJSON string
	var moduleIntelligenceBlob []byte
	found := false
	for rows.Next() {
		found = true
		if err := rows.Scan(&clusterKeyJSON, &moduleIntelligenceBlob); err != nil {
			rows.Close()
			return err
		}
	}
	rows.Close()
	if !found {
		return fmt.Errorf("strand %s not found", id)
	}

	var clusterKey []ClusterKeyEntry
	_ = json.Unmarshal([]byte(clusterKeyJSON), &clusterKey)
	for dim, consumed := range patch.ConsumedPatches {
		for i := range clusterKey {
			if clusterKey[i].ClusterType == dim {
				clusterKey[i].Consumed = consumed
			}
		}
	}
	newClusterKey, err := json.Marshal(clusterKey)
	if err != nil {
		return err
	}

	moduleIntelligence := map[string]interface{}{}
	if len(moduleIntelligenceBlob) > 0 {
		_ = msgpack.Unmarshal(moduleIntelligenceBlob, &moduleIntelligence)
	}
	for k, v := range patch.DoctrineRollup {
		moduleIntelligence[k] = v
	}
	newModuleIntelligence, err := msgpack.Marshal(moduleIntelligence)
	if err != nil {
		return err
	}

	outcomeScore := "outcome_score"
	var outcomeVal interface{}
	if patch.OutcomeScore != nil {
		outcomeVal = *patch.OutcomeScore
	} else {
		outcomeVal = nil
	}

	_, err = s.db.Exec(
		"UPDATE strands SET cluster_key = ?, module_intelligence = ?, outcome_score = COALESCE(?, "+outcomeScore+"), updated_at = ? WHERE id = ?",
		string(newClusterKey), newModuleIntelligence, outcomeVal, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update rollup: %w", err)
	}
	return nil
}

// CASConsume flips the consumed flag for (id, clusterType) from false to
// true, failing the call (ok=false) if another braider already consumed
// it. This is the compare-and-swap contract from §4.1 and §4.11.
func (s *Store) CASConsume(id, clusterType string) (ok bool, err error) {
	mu := s.partitionLock("__cas__", id)
	mu.Lock()
	defer mu.Unlock()

	st, found, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("strand %s not found", id)
	}
	entry, hasDim := st.DimensionKey(clusterType)
	if !hasDim {
		return false, fmt.Errorf("strand %s has no dimension %s", id, clusterType)
	}
	if entry.Consumed {
		return false, nil
	}

	err = s.UpdateRollup(id, RollupPatch{ConsumedPatches: map[string]bool{clusterType: true}})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileConsumedFlags is the §4.1 recovery pass: for a braid strand
// whose members weren't all flipped to consumed (crash mid-braid), flip
// the missing ones. Idempotent.
func (s *Store) ReconcileConsumedFlags(braidStrandID string, dimension string) error {
	braid, found, err := s.Get(braidStrandID)
	if err != nil || !found {
		return err
	}
	for _, memberID := range braid.SourceStrandIDs {
		member, found, err := s.Get(memberID)
		if err != nil || !found {
			continue
		}
		if entry, ok := member.DimensionKey(dimension); ok && !entry.Consumed {
			_, _ = s.CASConsume(memberID, dimension)
		}
	}
	return nil
}
