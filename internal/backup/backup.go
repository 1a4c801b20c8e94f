// Package backup snapshots every SQLite store to a tar.gz archive and
// ships it to S3-compatible object storage, rotating old archives while
// keeping a minimum retained count.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

const archivePrefix = "sentinel-backup-"

// objectStore is the subset of ObjectClient's surface Service depends on,
// kept as an interface so tests can substitute an in-memory stand-in
// instead of talking to real object storage.
type objectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// Config sets the staging directory and archive retention.
type Config struct {
	DataDir       string // staging directory for archives-in-progress
	RetentionDays int    // 0 keeps every archive beyond the minimum
}

// MinRetainedArchives is the floor RotateOldBackups will never delete
// below, regardless of age.
const MinRetainedArchives = 3

// Metadata describes one archive's contents.
type Metadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database snapshot within an archive.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Info describes an archive already stored in the object client.
type Info struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

// Service backs up every registered database and ships the archive to an
// ObjectClient.
type Service struct {
	databases map[string]*database.DB
	object    objectStore
	cfg       Config
	log       zerolog.Logger
}

// New builds a Service over the given named databases.
func New(databases map[string]*database.DB, object *ObjectClient, cfg Config, log zerolog.Logger) *Service {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	return &Service{
		databases: databases,
		object:    object,
		cfg:       cfg,
		log:       log.With().Str("component", "backup").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (s *Service) Name() string { return "backup" }

// Run performs a full snapshot-and-upload cycle followed by rotation.
func (s *Service) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := s.CreateAndUpload(ctx); err != nil {
		return err
	}
	return s.RotateOldBackups(ctx, s.cfg.RetentionDays)
}

// CreateAndUpload snapshots every database via SQLite's VACUUM INTO,
// archives them with a JSON metadata manifest, and uploads the result.
func (s *Service) CreateAndUpload(ctx context.Context) error {
	s.log.Info().Msg("starting backup")
	start := time.Now()

	staging := filepath.Join(s.cfg.DataDir, "backup-staging")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	meta := Metadata{Timestamp: time.Now().UTC(), Databases: make([]DatabaseMetadata, 0, len(names))}
	for _, name := range names {
		dbPath := filepath.Join(staging, name+".db")
		if err := s.snapshotDatabase(name, dbPath); err != nil {
			return fmt.Errorf("snapshot %s: %w", name, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return fmt.Errorf("stat %s snapshot: %w", name, err)
		}
		checksum, err := checksumFile(dbPath)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", name, err)
		}
		meta.Databases = append(meta.Databases, DatabaseMetadata{
			Name: name, Filename: name + ".db", SizeBytes: info.Size(), Checksum: checksum,
		})
	}

	metaPath := filepath.Join(staging, "backup-metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	timestamp := time.Now().UTC().Format("2006-01-02-150405")
	archiveName := fmt.Sprintf("%s%s.tar.gz", archivePrefix, timestamp)
	archivePath := filepath.Join(staging, archiveName)

	members := append(append([]string{}, names...), "backup-metadata")
	if err := createArchive(archivePath, staging, members); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.object.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("archive", archiveName).
		Int64("size_mb", archiveInfo.Size()/1024/1024).
		Msg("backup completed")
	return nil
}

// snapshotDatabase uses VACUUM INTO for an atomic, WAL-free copy.
func (s *Service) snapshotDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not registered", name)
	}
	_, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath))
	if err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// ListBackups lists every archive currently stored remotely, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]Info, error) {
	objects, err := s.object.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	now := time.Now()
	backups := make([]Info, 0, len(objects))
	for _, o := range objects {
		if !strings.HasSuffix(o.Key, ".tar.gz") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(o.Key, archivePrefix), ".tar.gz")
		ts, err := time.Parse("2006-01-02-150405", stamp)
		if err != nil {
			s.log.Warn().Str("key", o.Key).Msg("failed to parse backup timestamp from key")
			continue
		}
		backups = append(backups, Info{
			Key: o.Key, Timestamp: ts, SizeBytes: o.Size, AgeHours: int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateOldBackups deletes archives older than retentionDays, always
// keeping at least MinRetainedArchives regardless of age. retentionDays
// of 0 keeps everything beyond the minimum.
func (s *Service) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= MinRetainedArchives {
		return nil
	}

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := 0
	for i, b := range backups {
		if i < MinRetainedArchives || retentionDays == 0 {
			continue
		}
		if b.Timestamp.Before(cutoff) {
			if err := s.object.Delete(ctx, b.Key); err != nil {
				s.log.Error().Err(err).Str("key", b.Key).Msg("failed to delete old backup")
				continue
			}
			deleted++
		}
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation completed")
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeMetadata(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func createArchive(archivePath, sourceDir string, members []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer archiveFile.Close()

	gz := gzip.NewWriter(archiveFile)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, member := range members {
		name := member + ".db"
		if member == "backup-metadata" {
			name = "backup-metadata.json"
		}
		if err := addFileToArchive(tw, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime()}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
