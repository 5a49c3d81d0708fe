package schema

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/scalar"
)

// metricKeyField is the key field spec.md §4.2/§6 names "_metric".
const metricKeyField = "_metric"

// persistedField is the on-disk shape of one SchemaField: a short stable
// tag string for Kind plus the FieldClass, instead of a reflectively
// re-instantiated class name (spec.md §9 "class-name round-trip").
type persistedField struct {
	Name  string `json:"name"`
	Class string `json:"class"`
	Kind  string `json:"kind"`
}

type persistedSchema struct {
	Metric string           `json:"metric"`
	Fields []persistedField `json:"fields"`
}

// Store is the single-document-per-metric persistent index backing the
// registry (spec.md §4.2): one bleve index under "schema/", one document
// per metric keyed by _metric, with stored fields encoding
// field_name -> indexType class tag.
type Store struct {
	mu  sync.Mutex
	idx bleve.Index
}

// OpenStore opens (or creates) the schema index at path.
func OpenStore(path string) (*Store, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Store{idx: idx}, nil
	}
	m := mapping.NewIndexMapping()
	idx, err = bleve.New(path, m)
	if err != nil {
		return nil, &errs.IoError{Op: "schema.OpenStore", Err: err}
	}
	return &Store{idx: idx}, nil
}

// OpenStoreInMemory opens an ephemeral schema index, used by tests and by
// namespaces that never restart (spec.md leaves durability a deployment
// choice; the registry API is identical either way).
func OpenStoreInMemory() (*Store, error) {
	idx, err := bleve.NewMemOnly(mapping.NewIndexMapping())
	if err != nil {
		return nil, &errs.IoError{Op: "schema.OpenStoreInMemory", Err: err}
	}
	return &Store{idx: idx}, nil
}

// Close releases the underlying index handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Close()
}

// Put upserts the persisted form of sch.
func (s *Store) Put(sch Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps := persistedSchema{Metric: sch.Metric}
	for _, f := range sch.Fields {
		ps.Fields = append(ps.Fields, persistedField{Name: f.Name, Class: string(f.Class), Kind: string(f.Kind)})
	}
	blob, err := json.Marshal(ps)
	if err != nil {
		return &errs.IoError{Op: "schema.Put.marshal", Err: err}
	}
	doc := map[string]interface{}{
		metricKeyField: sch.Metric,
		"fields_json":  string(blob),
	}
	if err := s.idx.Index(sch.Metric, doc); err != nil {
		return &errs.IoError{Op: "schema.Put.index", Err: err}
	}
	return nil
}

// Delete removes the persisted schema for metric.
func (s *Store) Delete(metric string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idx.Delete(metric); err != nil {
		return &errs.IoError{Op: "schema.Delete", Err: err}
	}
	return nil
}

// DeleteAll removes every persisted schema, used by Registry.DeleteAll.
func (s *Store) DeleteAll() error {
	all, err := s.ScanAll()
	if err != nil {
		return err
	}
	for _, sch := range all {
		if err := s.Delete(sch.Metric); err != nil {
			return err
		}
	}
	return nil
}

// ScanAll performs the full-scan rebuild read at process start
// (spec.md §4.2: "the in-memory map is rebuilt by a full scan of the
// persistent index").
func (s *Store) ScanAll() ([]Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.idx.DocCount()
	if err != nil {
		return nil, &errs.IoError{Op: "schema.ScanAll.count", Err: err}
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Fields = []string{"fields_json"}
	req.Size = int(count)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, &errs.IoError{Op: "schema.ScanAll.search", Err: err}
	}
	out := make([]Schema, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, ok := hit.Fields["fields_json"].(string)
		if !ok {
			continue
		}
		var ps persistedSchema
		if err := json.Unmarshal([]byte(raw), &ps); err != nil {
			return nil, &errs.IoError{Op: "schema.ScanAll.unmarshal", Err: err}
		}
		sch := Schema{Metric: ps.Metric, Fields: make(map[string]scalar.SchemaField, len(ps.Fields))}
		for _, pf := range ps.Fields {
			sch.Fields[pf.Name] = scalar.SchemaField{Name: pf.Name, Class: scalar.FieldClass(pf.Class), Kind: scalar.Kind(pf.Kind)}
		}
		out = append(out, sch)
	}
	return out, nil
}

// pathFor joins a namespace base directory with the conventional "schema"
// subdirectory named in spec.md §6's persisted state layout.
func pathFor(baseDir string) string {
	return filepath.Join(baseDir, "schema")
}
