package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/semmidev/keepsake/internal/domain"
)

const (
	recordKeyPrefix   = "record:"
	artifactKeyPrefix = "artifact:"
)

type Options struct {
	Path     string
	InMemory bool
	Logger   badger.Logger
}

// Store keeps backup records in badger. A record is indexed by its backup id
// and, once it names an artifact, by the artifact name.
type Store struct {
	db *badger.DB
}

var _ domain.MetadataStore = (*Store)(nil)

func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithLogger(opts.Logger)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if rec.BackupID == "" {
		return errors.New("record without backup id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordKeyPrefix+rec.BackupID), data); err != nil {
			return fmt.Errorf("set record: %w", err)
		}
		if rec.Artifact != "" {
			if err := txn.Set([]byte(artifactKeyPrefix+rec.Artifact), []byte(rec.BackupID)); err != nil {
				return fmt.Errorf("set artifact index: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, backupID string) (domain.Record, error) {
	var rec domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, backupID, &rec)
	})
	return rec, err
}

func (s *Store) FindByArtifact(ctx context.Context, artifact string) (domain.Record, error) {
	var rec domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactKeyPrefix + artifact))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get artifact index: %w", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getRecord(txn, string(id), &rec)
	})
	return rec, err
}

// List returns every record, oldest first.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	var records []domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec domain.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func getRecord(txn *badger.Txn, backupID string, rec *domain.Record) error {
	item, err := txn.Get([]byte(recordKeyPrefix + backupID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}
