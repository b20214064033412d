// Package memory persists completed research runs for later recall. Records
// live in Redis with a TTL; a bleve index over topic and summary text serves
// similarity lookups when a new run starts on familiar ground.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/redis/go-redis/v9"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
)

const keyPrefix = "memory:research:"

// record is the JSON document stored per run. The capture level decides how
// much of it gets filled in.
type record struct {
	RunID      string            `json:"run_id"`
	Topic      string            `json:"topic"`
	Summary    string            `json:"summary"`
	Report     string            `json:"report,omitempty"`
	Sources    []research.Source `json:"sources,omitempty"`
	LoopCount  int               `json:"loop_count,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}

// indexDoc is what bleve sees; only the searchable text goes in.
type indexDoc struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// Store implements research.Capturer on Redis plus a local bleve index.
type Store struct {
	rdb    *redis.Client
	index  bleve.Index
	level  string
	ttl    time.Duration
	logger *log.Logger
}

// New opens the memory store. Returns (nil, nil) when memory is disabled;
// a nil *Store is handed to the graph as a nil Capturer.
func New(cfg config.MemoryConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	index, err := openIndex(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open memory index: %w", err)
	}

	ttl := cfg.Redis.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &Store{
		rdb:    rdb,
		index:  index,
		level:  cfg.CaptureLevel,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[MEMORY] ", log.LstdFlags),
	}, nil
}

func openIndex(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(bleve.NewIndexMapping())
	}
	index, err := bleve.Open(path)
	if err == nil {
		return index, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, err
	}
	return bleve.New(path, bleve.NewIndexMapping())
}

// buildRecord shapes the stored document for a capture level. Minimal keeps
// only topic and summary; essential adds sources and the loop count;
// comprehensive keeps the full report as well.
func buildRecord(level string, rec research.CaptureRecord, now time.Time) record {
	doc := record{
		RunID:      rec.RunID,
		Topic:      rec.Topic,
		Summary:    rec.Summary,
		CapturedAt: now,
	}
	switch level {
	case config.CaptureMinimal:
	case config.CaptureComprehensive:
		doc.Report = rec.Report
		doc.Sources = rec.Sources
		doc.LoopCount = rec.LoopCount
	default: // essential
		doc.Sources = rec.Sources
		doc.LoopCount = rec.LoopCount
	}
	return doc
}

// Capture stores one completed run at the configured capture level.
func (s *Store) Capture(ctx context.Context, rec research.CaptureRecord) error {
	doc := buildRecord(s.level, rec, time.Now().UTC())

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal memory record: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+rec.RunID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store memory record: %w", err)
	}

	if err := s.index.Index(rec.RunID, indexDoc{Topic: rec.Topic, Summary: rec.Summary}); err != nil {
		// recall degrades but the record is safe in redis
		s.logger.Printf("index memory record %s: %v", rec.RunID, err)
	}
	return nil
}

// Recall returns up to k summaries from earlier runs matching the topic.
// Records expired out of Redis are skipped silently.
func (s *Store) Recall(ctx context.Context, topic string, k int) ([]string, error) {
	if k <= 0 {
		k = 3
	}

	query := bleve.NewMatchQuery(topic)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search memory index: %w", err)
	}

	notes := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, err := s.rdb.Get(ctx, keyPrefix+hit.ID).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load memory record %s: %w", hit.ID, err)
		}
		var doc record
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Printf("corrupt memory record %s: %v", hit.ID, err)
			continue
		}
		if doc.Summary == "" {
			continue
		}
		notes = append(notes, fmt.Sprintf("[%s] %s", doc.Topic, doc.Summary))
	}
	return notes, nil
}

// Close releases the index and the redis connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.rdb.Close()
}
