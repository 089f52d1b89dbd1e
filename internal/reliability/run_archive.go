// Package reliability archives optimization runs to object storage and runs
// database maintenance.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/modules/optimization"
)

const (
	archivePrefix  = "runs/"
	archiveSuffix  = ".msgpack.gz"
	archiveVersion = 1

	// minArchivesToKeep survive rotation regardless of age.
	minArchivesToKeep = 3
)

// ErrChecksumMismatch is returned when an archived payload fails verification.
var ErrChecksumMismatch = errors.New("archive checksum mismatch")

// RunArchive is the envelope written for every run.
type RunArchive struct {
	Version    int       `msgpack:"version"`
	RunID      string    `msgpack:"run_id"`
	ArchivedAt time.Time `msgpack:"archived_at"`
	Checksum   string    `msgpack:"checksum"`
	Payload    []byte    `msgpack:"payload"`
}

// ArchiveInfo describes an archived run in the bucket.
type ArchiveInfo struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// RunArchiveService writes optimization runs to an object store.
type RunArchiveService struct {
	store ObjectStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewRunArchiveService creates a new archive service.
func NewRunArchiveService(store ObjectStore, log zerolog.Logger) *RunArchiveService {
	return &RunArchiveService{
		store: store,
		now:   time.Now,
		log:   log.With().Str("service", "run_archive").Logger(),
	}
}

// ArchiveKey returns the object key for a run: runs/YYYY/MM/DD/<id>.msgpack.gz.
func ArchiveKey(runID string, createdAt time.Time) string {
	return archivePrefix + createdAt.UTC().Format("2006/01/02") + "/" + runID + archiveSuffix
}

// ArchiveRun serializes the run, gzips it and uploads it.
func (s *RunArchiveService) ArchiveRun(ctx context.Context, run *optimization.RunResult) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("cannot archive a run without an id")
	}
	startTime := s.now()

	payload, err := msgpack.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	envelope, err := msgpack.Marshal(&RunArchive{
		Version:    archiveVersion,
		RunID:      run.ID,
		ArchivedAt: startTime.UTC(),
		Checksum:   checksum(payload),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode archive envelope: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(envelope); err != nil {
		return fmt.Errorf("failed to compress run %s: %w", run.ID, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress run %s: %w", run.ID, err)
	}

	key := ArchiveKey(run.ID, run.CreatedAt)
	size := buf.Len()
	if err := s.store.Upload(ctx, key, &buf, "application/gzip"); err != nil {
		return fmt.Errorf("failed to upload run %s: %w", run.ID, err)
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("key", key).
		Int("size_bytes", size).
		Dur("duration", s.now().Sub(startTime)).
		Msg("Run archived")
	return nil
}

// LoadRun downloads and verifies an archived run.
func (s *RunArchiveService) LoadRun(ctx context.Context, key string) (*optimization.RunResult, error) {
	data, err := s.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", key, err)
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress archive %s: %w", key, err)
	}

	var envelope RunArchive
	if err := msgpack.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", key, err)
	}
	if checksum(envelope.Payload) != envelope.Checksum {
		return nil, fmt.Errorf("%s: %w", key, ErrChecksumMismatch)
	}

	var run optimization.RunResult
	if err := msgpack.Unmarshal(envelope.Payload, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run in %s: %w", key, err)
	}
	return &run, nil
}

// ListArchives returns archived runs, newest first.
func (s *RunArchiveService) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	now := s.now()
	archives := make([]ArchiveInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, archiveSuffix) {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Key:       obj.Key,
			RunID:     strings.TrimSuffix(path.Base(obj.Key), archiveSuffix),
			Timestamp: obj.LastModified,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(obj.LastModified).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})
	return archives, nil
}

// RotateArchives deletes archives older than retentionDays. The newest
// minArchivesToKeep are always kept and a retention of 0 keeps everything.
func (s *RunArchiveService) RotateArchives(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	archives, err := s.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if len(archives) <= minArchivesToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, a := range archives[minArchivesToKeep:] {
		if !a.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, a.Key); err != nil {
			s.log.Error().Err(err).Str("key", a.Key).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")
	return deleted, nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
