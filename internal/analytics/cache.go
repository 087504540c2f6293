package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"opsline/internal/domain"
)

// SnapshotCache holds snapshots keyed by a content hash of everything they
// were computed from. Any change to the fetched records changes the key.
type SnapshotCache struct {
	entries *lru.Cache[string, domain.ReportSnapshot]
}

// NewSnapshotCache returns nil when size is not positive; a nil cache never hits.
func NewSnapshotCache(size int) (*SnapshotCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, domain.ReportSnapshot](size)
	if err != nil {
		return nil, err
	}
	return &SnapshotCache{entries: entries}, nil
}

func (c *SnapshotCache) Get(key string) (domain.ReportSnapshot, bool) {
	if c == nil || key == "" {
		return domain.ReportSnapshot{}, false
	}
	snap, ok := c.entries.Get(key)
	if !ok {
		return domain.ReportSnapshot{}, false
	}
	return Clone(snap), true
}

func (c *SnapshotCache) Add(key string, snap domain.ReportSnapshot) {
	if c == nil || key == "" {
		return
	}
	c.entries.Add(key, Clone(snap))
}

func (c *SnapshotCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

type cacheInput struct {
	Filter    domain.ReportFilter    `json:"filter"`
	Burndown  []domain.BurndownPoint `json:"burndown"`
	Today     string                 `json:"today"`
	Items     []domain.WorkItem      `json:"items"`
	Projects  []domain.Project       `json:"projects"`
	Processes []domain.Process       `json:"processes"`
}

// contentKey hashes the filter, the burndown series, the current day (overdue
// checks depend on it) and the fetched records. It returns "" when the input
// cannot be encoded.
func contentKey(f domain.ReportFilter, burn []domain.BurndownPoint, now time.Time, items []domain.WorkItem, projects []domain.Project, processes []domain.Process) string {
	data, err := json.Marshal(cacheInput{
		Filter:    f,
		Burndown:  burn,
		Today:     now.UTC().Format("2006-01-02"),
		Items:     items,
		Projects:  projects,
		Processes: processes,
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
