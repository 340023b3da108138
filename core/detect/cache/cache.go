// Package cache memoises entity detection. Results are keyed by a BLAKE3
// digest of the detector namespace and the segment text, held in memory and
// optionally persisted in SQLite so repeated runs over the same corpus skip
// the underlying detector.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/FocuswithJustin/JuniperTimex/core/sqlite"
	"github.com/FocuswithJustin/JuniperTimex/internal/cache"
)

const schema = `CREATE TABLE IF NOT EXISTS detections (
	key        TEXT PRIMARY KEY,
	namespace  TEXT NOT NULL,
	spans      TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// Config configures a caching detector.
type Config struct {
	// Path is the SQLite database file. Empty keeps the cache in memory only.
	Path string
	// Namespace identifies the wrapped detector (model name, rules digest);
	// results from different namespaces never mix.
	Namespace string
	// MemoTTL bounds how long results stay in memory (0 = no expiry).
	MemoTTL time.Duration
	// MemoSize bounds the number of in-memory results (0 = unbounded).
	MemoSize int
}

// Stats counts cache outcomes.
type Stats struct {
	MemoHits  int
	StoreHits int
	Misses    int
}

// Detector wraps another detector with a cache. Like the annotator that
// drives it, a Detector is not safe for concurrent use.
type Detector struct {
	inner     detect.Detector
	namespace string
	db        *sql.DB
	memo      *cache.Memo[string, []detect.Span]
	stats     Stats
}

// New wraps inner. When cfg.Path is set the database is opened and its
// schema created immediately.
func New(inner detect.Detector, cfg Config) (*Detector, error) {
	d := &Detector{
		inner:     inner,
		namespace: cfg.Namespace,
		memo:      cache.New[string, []detect.Span](cfg.MemoTTL, cfg.MemoSize),
	}
	if cfg.Path == "" {
		return d, nil
	}

	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, errors.NewDetector("cache", "opening "+cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewDetector("cache", "creating schema", err)
	}
	d.db = db
	return d, nil
}

// Key returns the cache key for text under namespace.
func Key(namespace, text string) string {
	buf := make([]byte, 0, len(namespace)+1+len(text))
	buf = append(buf, namespace...)
	buf = append(buf, 0)
	buf = append(buf, text...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Detect returns cached spans for text, consulting the wrapped detector
// only on a miss.
func (d *Detector) Detect(ctx context.Context, text string) ([]detect.Span, error) {
	key := Key(d.namespace, text)

	if spans, ok := d.memo.Get(key); ok {
		d.stats.MemoHits++
		return clone(spans), nil
	}

	if d.db != nil {
		spans, ok, err := d.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			d.stats.StoreHits++
			d.memo.Set(key, spans)
			return clone(spans), nil
		}
	}

	d.stats.Misses++
	spans, err := d.inner.Detect(ctx, text)
	if err != nil {
		return nil, err
	}
	d.memo.Set(key, clone(spans))
	if d.db != nil {
		if err := d.store(ctx, key, spans); err != nil {
			return nil, err
		}
	}
	return spans, nil
}

func (d *Detector) load(ctx context.Context, key string) ([]detect.Span, bool, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `SELECT spans FROM detections WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewDetector("cache", "reading cached spans", err)
	}
	var spans []detect.Span
	if err := json.Unmarshal([]byte(raw), &spans); err != nil {
		return nil, false, errors.NewDetector("cache", fmt.Sprintf("decoding cached spans for %s", key), err)
	}
	return spans, true, nil
}

func (d *Detector) store(ctx context.Context, key string, spans []detect.Span) error {
	if spans == nil {
		spans = []detect.Span{}
	}
	raw, err := json.Marshal(spans)
	if err != nil {
		return errors.NewDetector("cache", "encoding spans", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO detections (key, namespace, spans, created_at) VALUES (?, ?, ?, ?)`,
		key, d.namespace, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.NewDetector("cache", "writing cached spans", err)
	}
	return nil
}

// Stats returns the hit and miss counts since creation.
func (d *Detector) Stats() Stats {
	return d.stats
}

// Close drops the in-memory entries and closes the database, if any.
func (d *Detector) Close() error {
	d.memo.Invalidate()
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func clone(spans []detect.Span) []detect.Span {
	if spans == nil {
		return nil
	}
	return append([]detect.Span(nil), spans...)
}
