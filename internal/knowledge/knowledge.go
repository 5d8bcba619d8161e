package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
)

// Entry is a single document in the knowledge base.
type Entry struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Result is an Entry annotated with its retrieval scores.
type Result struct {
	Entry
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// Stats describes the current state of the knowledge base.
type Stats struct {
	Entries   int  `json:"total_entries"`
	Available bool `json:"index_available"`
}

// Base stores documents in chromem-go for semantic retrieval, with a JSON
// entry index persisted alongside the vector data.
type Base struct {
	db         *chromem.DB
	collection *chromem.Collection
	entries    map[string]Entry
	mu         sync.RWMutex
	persistDir string // empty for in-memory
	available  bool
}

// New creates a persistent knowledge Base backed by chromem-go.
// If the embedder is unreachable the Base still loads its entry index so
// listing and deletion keep working; only retrieval is disabled.
func New(persistDir string, embedFunc EmbedFunc) (*Base, error) {
	db, err := chromem.NewPersistentDB(persistDir, false)
	if err != nil {
		return nil, fmt.Errorf("create persistent DB: %w", err)
	}

	col, err := db.GetOrCreateCollection("knowledge", nil, chromem.EmbeddingFunc(embedFunc))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	b := &Base{
		db:         db,
		collection: col,
		entries:    make(map[string]Entry),
		persistDir: persistDir,
		available:  embedFunc != nil,
	}

	if err := b.loadIndex(); err != nil {
		// Not fatal, index may not exist yet
		_ = err
	}

	return b, nil
}

// NewInMemory creates an in-memory Base for testing.
func NewInMemory(embedFunc EmbedFunc) (*Base, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("knowledge", nil, chromem.EmbeddingFunc(embedFunc))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &Base{
		db:         db,
		collection: col,
		entries:    make(map[string]Entry),
		available:  embedFunc != nil,
	}, nil
}

// ContentID derives the stable document ID for a piece of content. The same
// text always maps to the same ID, which is what makes Add idempotent.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Add stores content in the knowledge base. Adding content that is already
// present is a no-op: the existing entry is returned with existed=true and
// no embedding call is made.
func (b *Base) Add(ctx context.Context, content string, metadata map[string]string) (Entry, bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Entry{}, false, fmt.Errorf("empty content")
	}

	id := ContentID(content)

	b.mu.RLock()
	existing, ok := b.entries[id]
	b.mu.RUnlock()
	if ok {
		return existing, true, nil
	}

	if !b.available {
		return Entry{}, false, fmt.Errorf("knowledge index unavailable")
	}

	entry := Entry{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	docMeta := map[string]string{
		"timestamp": entry.Timestamp.Format(time.RFC3339),
	}
	for k, v := range metadata {
		docMeta[k] = v
	}

	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: docMeta,
	}
	if err := b.collection.AddDocument(ctx, doc); err != nil {
		return Entry{}, false, fmt.Errorf("add document: %w", err)
	}

	b.mu.Lock()
	b.entries[id] = entry
	b.mu.Unlock()

	b.saveIndex()
	return entry, false, nil
}

// Query retrieves up to topK entries semantically similar to the query text.
// Results below minSimilarity are dropped. Similarity is clamped to [0, 1]
// and ranks start at 1.
func (b *Base) Query(ctx context.Context, query string, topK int, minSimilarity float64) ([]Result, error) {
	if !b.available {
		return nil, fmt.Errorf("knowledge index unavailable")
	}
	if topK <= 0 {
		topK = 3
	}

	count := b.collection.Count()
	if count == 0 {
		return nil, nil
	}

	nResults := topK
	if nResults > count {
		nResults = count
	}

	results, err := b.collection.Query(ctx, query, nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		if sim < minSimilarity {
			continue
		}
		out = append(out, Result{
			Entry:      b.entryFromResult(r),
			Similarity: sim,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	for i := range out {
		out[i].Rank = i + 1
	}

	return out, nil
}

// Delete removes an entry by ID. Deleting an unknown ID is a no-op.
func (b *Base) Delete(ctx context.Context, id string) error {
	b.mu.RLock()
	_, ok := b.entries[id]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := b.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	b.mu.Lock()
	delete(b.entries, id)
	b.mu.Unlock()

	b.saveIndex()
	return nil
}

// Clear removes every entry.
func (b *Base) Clear(ctx context.Context) error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	b.entries = make(map[string]Entry)
	b.mu.Unlock()

	if len(ids) > 0 {
		if err := b.collection.Delete(ctx, nil, nil, ids...); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}

	b.saveIndex()
	return nil
}

// All returns every entry, newest first.
func (b *Base) All() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries
}

// Stats reports entry count and index availability.
func (b *Base) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{Entries: len(b.entries), Available: b.available}
}

// Available reports whether semantic retrieval can be used.
func (b *Base) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

// FormatContext renders results as a context block for the system prompt.
// Empty results produce an empty string.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant knowledge:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "%d. %s (relevance: %.2f)\n", r.Rank, r.Content, r.Similarity)
	}
	return sb.String()
}

// entryFromResult reconstructs an Entry from a chromem-go Result.
func (b *Base) entryFromResult(r chromem.Result) Entry {
	b.mu.RLock()
	if e, ok := b.entries[r.ID]; ok {
		b.mu.RUnlock()
		return e
	}
	b.mu.RUnlock()

	// Fallback: reconstruct from metadata
	ts, _ := time.Parse(time.RFC3339, r.Metadata["timestamp"])
	meta := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		if k == "timestamp" {
			continue
		}
		meta[k] = v
	}
	return Entry{ID: r.ID, Content: r.Content, Metadata: meta, Timestamp: ts}
}

// Index persistence, a JSON file alongside the chromem data.

func (b *Base) indexPath() string {
	if b.persistDir == "" {
		return ""
	}
	return filepath.Join(b.persistDir, "entries.json")
}

func (b *Base) saveIndex() {
	path := b.indexPath()
	if path == "" {
		return
	}

	b.mu.RLock()
	data, err := json.Marshal(b.entries)
	b.mu.RUnlock()

	if err != nil {
		return
	}
	os.WriteFile(path, data, 0644)
}

func (b *Base) loadIndex() error {
	path := b.indexPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return json.Unmarshal(data, &b.entries)
}
