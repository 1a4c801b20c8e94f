package doctrine

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/strand"
)

func newTestCuration(t *testing.T) (*CurationJob, *strand.Store, *Store) {
	t.Helper()
	dir := t.TempDir()

	strands, err := strand.New(filepath.Join(dir, "strands.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = strands.Close() })

	docs := newTestStore(t)

	job := NewCurationJob(strands, docs, Thresholds{}, zerolog.Nop())
	return job, strands, docs
}

func TestRun_AbsorbsUnconsumedLessonIntoDoctrineEntry(t *testing.T) {
	job, strands, docs := newTestCuration(t)

	id, err := strands.Append(strand.Strand{
		Kind:         strand.KindLesson,
		SourceID:     "doctrine_curator",
		Symbol:       "BTC",
		Tags:         []string{"team:member:breakout"},
		OutcomeScore: 0.9,
		ClusterKey:   []strand.ClusterKeyEntry{{ClusterType: "doctrine", Consumed: false}},
	})
	require.NoError(t, err)

	require.NoError(t, job.Run())

	entry, found, err := docs.Get("breakout", "BTC")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, entry.EvidenceCount)
	assert.Equal(t, 1.0, entry.SuccessRate)

	got, _, err := strands.Get(id)
	require.NoError(t, err)
	consumedEntry, ok := got.DimensionKey("doctrine")
	require.True(t, ok)
	assert.True(t, consumedEntry.Consumed)
}

func TestRun_SkipsAlreadyConsumedLessons(t *testing.T) {
	job, strands, docs := newTestCuration(t)

	_, err := strands.Append(strand.Strand{
		Kind:         strand.KindLesson,
		SourceID:     "doctrine_curator",
		Symbol:       "BTC",
		Tags:         []string{"team:member:breakout"},
		OutcomeScore: 0.9,
		ClusterKey:   []strand.ClusterKeyEntry{{ClusterType: "doctrine", Consumed: true}},
	})
	require.NoError(t, err)

	require.NoError(t, job.Run())

	_, found, err := docs.Get("breakout", "BTC")
	require.NoError(t, err)
	assert.False(t, found, "already-consumed lessons must not be reprocessed")
}

func TestRun_StampsContraindicationReasonOnTransition(t *testing.T) {
	job, _, docs := newTestCuration(t)

	th := DefaultThresholds()
	for i := 0; i < 10; i++ {
		_, err := docs.ApplyLesson("breakout", "BTC", false, WhyMapDelta{"regime:chop"}, th)
		require.NoError(t, err)
	}

	require.NoError(t, job.Run())

	entry, found, err := docs.Get("breakout", "BTC")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusContraindicated, entry.Status)
	assert.NotEmpty(t, entry.Contraindications)
}

func TestName(t *testing.T) {
	job, _, _ := newTestCuration(t)
	assert.Equal(t, "doctrine_curation", job.Name())
}
