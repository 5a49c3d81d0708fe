package metadata

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/dreamware/nsdb/internal/errs"
)

var (
	locationsBucket  = []byte("locations")
	metricInfoBucket = []byte("metric_info")
)

// Store is the durable half of the metadata registry: a bbolt database at
// "metadata/" under the namespace's base path, giving a restarted node its
// last-known locations and metric intervals without waiting on a full
// gossip resync (spec.md §6 persisted state layout).
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the metadata key-value store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &errs.IoError{Op: "metadata.OpenStore", Err: err}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(locationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metricInfoBucket)
		return err
	})
	if err != nil {
		return nil, &errs.IoError{Op: "metadata.OpenStore.buckets", Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func locationKey(metric string, binIndex int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d", metric, binIndex))
}

// PutLocation persists loc.
func (s *Store) PutLocation(loc Location) error {
	blob, err := json.Marshal(loc)
	if err != nil {
		return &errs.IoError{Op: "metadata.PutLocation.marshal", Err: err}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(locationsBucket).Put(locationKey(loc.Metric, loc.BinIndex), blob)
	})
	if err != nil {
		return &errs.IoError{Op: "metadata.PutLocation", Err: err}
	}
	return nil
}

// LoadLocations returns every persisted Location, for the startup rebuild.
func (s *Store) LoadLocations() ([]Location, error) {
	var out []Location
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(locationsBucket).ForEach(func(_, v []byte) error {
			var loc Location
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			out = append(out, loc)
			return nil
		})
	})
	if err != nil {
		return nil, &errs.IoError{Op: "metadata.LoadLocations", Err: err}
	}
	return out, nil
}

// PutMetricInfo persists mi. Callers enforce the append-only/frozen
// invariant (spec.md §3) before calling this; the store itself is a plain
// upsert.
func (s *Store) PutMetricInfo(mi MetricInfo) error {
	blob, err := json.Marshal(mi)
	if err != nil {
		return &errs.IoError{Op: "metadata.PutMetricInfo.marshal", Err: err}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metricInfoBucket).Put([]byte(mi.Metric), blob)
	})
	if err != nil {
		return &errs.IoError{Op: "metadata.PutMetricInfo", Err: err}
	}
	return nil
}

// LoadMetricInfo returns every persisted MetricInfo, for the startup rebuild.
func (s *Store) LoadMetricInfo() ([]MetricInfo, error) {
	var out []MetricInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metricInfoBucket).ForEach(func(_, v []byte) error {
			var mi MetricInfo
			if err := json.Unmarshal(v, &mi); err != nil {
				return err
			}
			out = append(out, mi)
			return nil
		})
	})
	if err != nil {
		return nil, &errs.IoError{Op: "metadata.LoadMetricInfo", Err: err}
	}
	return out, nil
}
