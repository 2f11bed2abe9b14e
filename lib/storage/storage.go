// Package storage is the persisted key-value facade page state survives full
// reloads through. Values live in badger, encoded by lib/encoding: signed by
// default, encrypted when the item is marked sensitive.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/pthm/hxnav/lib/encoding"
)

const keyPrefix = "item/"

const (
	flagSigned    byte = 's'
	flagEncrypted byte = 'e'
)

// ErrClosed is returned by operations on a closed Storage.
var ErrClosed = errors.New("storage: closed")

// Item is one stored entry.
type Item struct {
	Key       string
	Value     any
	Sensitive bool
}

// Options configures Open.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Key signs and encrypts values.
	Key    []byte
	Logger *slog.Logger
}

// Storage is a badger-backed item store. It is safe for concurrent use.
type Storage struct {
	db  *badger.DB
	enc *encoding.Encoder
	log *slog.Logger
}

// Open opens (or creates) a storage database.
func Open(opts Options) (*Storage, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("storage: path required unless in memory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enc, err := encoding.NewEncoder(opts.Key)
	if err != nil {
		return nil, fmt.Errorf("storage: encoder: %w", err)
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger.With("component", "badger")})
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return &Storage{db: db, enc: enc, log: logger}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Set stores value under key, signed.
func (s *Storage) Set(key string, value any) error {
	return s.SetItem(Item{Key: key, Value: value})
}

// Get returns the value under key, or nil when absent.
func (s *Storage) Get(key string) (any, error) {
	item, err := s.GetItem(key)
	if err != nil || item == nil {
		return nil, err
	}
	return item.Value, nil
}

// SetItem stores an item, encrypting it when Sensitive is set.
func (s *Storage) SetItem(item Item) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	encoded, err := s.enc.Encode(item.Value, item.Sensitive)
	if err != nil {
		return fmt.Errorf("storage: %s: %w", item.Key, err)
	}
	flag := flagSigned
	if item.Sensitive {
		flag = flagEncrypted
	}
	record := append([]byte{flag}, encoded...)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+item.Key), record)
	})
}

// GetItem returns the item under key, or nil, nil when absent.
func (s *Storage) GetItem(key string) (*Item, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", key, err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("storage: %s: %w", key, encoding.ErrInvalidFormat)
	}

	sensitive := record[0] == flagEncrypted
	value, err := s.enc.Decode(string(record[1:]), sensitive)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", key, err)
	}
	return &Item{Key: key, Value: value, Sensitive: sensitive}, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Storage) Delete(key string) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// Keys lists every stored key in order.
func (s *Storage) Keys() ([]string, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return keys, err
}

type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
