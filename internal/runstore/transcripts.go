package runstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dubber/internal/timeline"
)

// CachedTranscript is a stored segment list.
type CachedTranscript struct {
	Key        string
	SourcePath string
	Provider   string
	Language   string
	Segments   []timeline.Segment
	CreatedAt  time.Time
}

// TranscriptKey derives the cache key for a source file and the settings
// that influence transcription. The file's size and modification time are
// part of the key so edits invalidate cached entries.
func TranscriptKey(sourcePath, provider, model, language string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("stat transcript source: %w", err)
	}
	raw := strings.Join([]string{
		sourcePath,
		strconv.FormatInt(info.Size(), 10),
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		strings.ToLower(strings.TrimSpace(provider)),
		strings.ToLower(strings.TrimSpace(model)),
		strings.ToLower(strings.TrimSpace(language)),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return "transcript:" + hex.EncodeToString(sum[:]), nil
}

// PutTranscript stores or replaces a cached transcript.
func (s *Store) PutTranscript(ctx context.Context, entry CachedTranscript) error {
	if strings.TrimSpace(entry.Key) == "" {
		return errors.New("put transcript: key is required")
	}
	payload, err := json.Marshal(entry.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO transcripts (cache_key, source_path, provider, language, segment_count, segments_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(cache_key) DO UPDATE SET
            source_path = excluded.source_path,
            provider = excluded.provider,
            language = excluded.language,
            segment_count = excluded.segment_count,
            segments_json = excluded.segments_json,
            created_at = excluded.created_at`,
		entry.Key, entry.SourcePath, entry.Provider, nullableString(entry.Language), len(entry.Segments), string(payload), formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	return nil
}

// GetTranscript loads a cached transcript. The boolean is false on a miss.
func (s *Store) GetTranscript(ctx context.Context, key string) (CachedTranscript, bool, error) {
	var (
		entry      CachedTranscript
		language   sql.NullString
		payload    string
		createdRaw sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT cache_key, source_path, provider, language, segments_json, created_at FROM transcripts WHERE cache_key = ?`, key,
	).Scan(&entry.Key, &entry.SourcePath, &entry.Provider, &language, &payload, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedTranscript{}, false, nil
	}
	if err != nil {
		return CachedTranscript{}, false, fmt.Errorf("get transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &entry.Segments); err != nil {
		return CachedTranscript{}, false, fmt.Errorf("decode cached segments: %w", err)
	}
	entry.Language = language.String
	entry.CreatedAt = parseTime(createdRaw)
	return entry, true, nil
}

// PruneTranscripts removes cache entries created before cutoff.
func (s *Store) PruneTranscripts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM transcripts WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune transcripts: %w", err)
	}
	return res.RowsAffected()
}
