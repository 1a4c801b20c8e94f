package backup

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/pkg/logger"
)

// fakeStore is an in-memory stand-in for the S3-backed ObjectClient,
// satisfying objectStore so CreateAndUpload/RotateOldBackups can be
// exercised without network access.
type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestService(t *testing.T, databases map[string]*database.DB, store *fakeStore) *Service {
	t.Helper()
	return &Service{
		databases: databases,
		object:    store,
		cfg:       Config{DataDir: t.TempDir()},
		log:       logger.New(logger.Config{Level: "error"}),
	}
}

func openTestDB(t *testing.T, dir, name string) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestService_CreateAndUpload(t *testing.T) {
	dir := t.TempDir()
	strandDB := openTestDB(t, dir, "strand")
	_, err := strandDB.Conn().Exec("CREATE TABLE strands (id TEXT PRIMARY KEY, symbol TEXT)")
	require.NoError(t, err)
	_, err = strandDB.Conn().Exec("INSERT INTO strands (id, symbol) VALUES ('s1', 'BTCUSD')")
	require.NoError(t, err)

	store := newFakeStore()
	svc := newTestService(t, map[string]*database.DB{"strand": strandDB}, store)

	err = svc.CreateAndUpload(context.Background())
	require.NoError(t, err)

	objects, err := store.List(context.Background(), archivePrefix)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Greater(t, objects[0].Size, int64(0))
}

func TestService_RotateOldBackups_KeepsMinimum(t *testing.T) {
	store := newFakeStore()
	for _, stamp := range []string{
		"2026-01-01-000000", "2026-01-02-000000", "2026-01-03-000000", "2026-01-04-000000",
	} {
		store.objects[archivePrefix+stamp+".tar.gz"] = []byte("archive")
	}

	svc := newTestService(t, map[string]*database.DB{}, store)

	err := svc.RotateOldBackups(context.Background(), 1)
	require.NoError(t, err)

	remaining, err := store.List(context.Background(), archivePrefix)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(remaining), MinRetainedArchives)
}

func TestService_RotateOldBackups_TooFewToRotate(t *testing.T) {
	store := newFakeStore()
	store.objects[archivePrefix+"2026-01-01-000000.tar.gz"] = []byte("archive")
	store.objects[archivePrefix+"2026-01-02-000000.tar.gz"] = []byte("archive")

	svc := newTestService(t, map[string]*database.DB{}, store)

	err := svc.RotateOldBackups(context.Background(), 1)
	require.NoError(t, err)

	remaining, err := store.List(context.Background(), archivePrefix)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
