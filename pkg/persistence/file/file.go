// Package file provides file-based persistence for workflows, templates, dockets and rulesets.
// Every record is a JSON document under <root>/<collection>/<id>.json; numeric ids come from
// <root>/sequences.json.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goobi/goobi-production/pkg/persistence"
)

const (
	workflowsDir = "workflows"
	templatesDir = "templates"
	docketsDir   = "dockets"
	rulesetsDir  = "rulesets"
	tasksSeq     = "tasks"
	sequenceFile = "sequences.json"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// nextID hands out the next id of a collection. Callers hold fp.mu.
func (fp *Persistence) nextID(collection string) (int64, error) {
	path := filepath.Join(fp.root, sequenceFile)
	sequences := map[string]int64{}

	body, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to read sequences: %w", err)
	}

	if len(body) > 0 {
		if err := json.Unmarshal(body, &sequences); err != nil {
			return 0, fmt.Errorf("failed to unmarshal sequences: %w", err)
		}
	}

	sequences[collection]++

	data, err := json.MarshalIndent(sequences, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sequences: %w", err)
	}

	if err := os.MkdirAll(fp.root, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create root directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write sequences: %w", err)
	}

	return sequences[collection], nil
}

func (fp *Persistence) path(collection string, id int64) string {
	return filepath.Join(fp.root, collection, strconv.FormatInt(id, 10)+".json")
}

// read loads one record. It reports false when the record does not exist.
func read[T any](fp *Persistence, collection string, id int64) (*T, bool, error) {
	body, err := os.ReadFile(fp.path(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to fetch %s %d: %w", collection, id, err)
	}

	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s %d: %w", collection, id, err)
	}

	return &record, true, nil
}

// readAll loads every record of a collection ordered by id.
func readAll[T any](fp *Persistence, collection string) ([]*T, error) {
	matches, err := filepath.Glob(filepath.Join(fp.root, collection, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	ids := make([]int64, 0, len(matches))

	for _, match := range matches {
		id, err := strconv.ParseInt(strings.TrimSuffix(filepath.Base(match), ".json"), 10, 64)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]*T, 0, len(ids))

	for _, id := range ids {
		record, ok, err := read[T](fp, collection, id)
		if err != nil {
			return nil, err
		}

		if ok {
			records = append(records, record)
		}
	}

	return records, nil
}

func (fp *Persistence) encode(collection string, id int64, record any) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s %d: %w", collection, id, err)
	}

	return data, nil
}

func (fp *Persistence) write(collection string, id int64, data []byte) error {
	return fp.writeAll([]document{{collection: collection, id: id, data: data}})
}

type document struct {
	collection string
	id         int64
	data       []byte
}

// writeAll writes every document to a temporary file first and renames them into place once
// all writes succeeded. A failed write leaves the stored documents unchanged; only a failing
// rename can leave some documents replaced.
func (fp *Persistence) writeAll(docs []document) error {
	staged := make([]string, 0, len(docs))

	cleanup := func() {
		for _, path := range staged {
			_ = os.Remove(path)
		}
	}

	for _, doc := range docs {
		if err := os.MkdirAll(filepath.Join(fp.root, doc.collection), 0o750); err != nil {
			cleanup()

			return fmt.Errorf("failed to create %s directory: %w", doc.collection, err)
		}

		tmp := fp.path(doc.collection, doc.id) + ".tmp"
		if err := os.WriteFile(tmp, doc.data, 0o600); err != nil {
			cleanup()

			return fmt.Errorf("failed to write %s %d: %w", doc.collection, doc.id, err)
		}

		staged = append(staged, tmp)
	}

	for i, doc := range docs {
		if err := os.Rename(staged[i], fp.path(doc.collection, doc.id)); err != nil {
			cleanup()

			return fmt.Errorf("failed to store %s %d: %w", doc.collection, doc.id, err)
		}
	}

	return nil
}

func touch(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}

	*updatedAt = now
}
