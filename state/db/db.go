// Package db provides a sqlite-backed GlobalState built on GORM.
// Stored values are persisted as CBOR records, one row per key.
package db

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

const (
	defaultDBPath = "./state.db"
)

// DBEntry is one global state entry
type DBEntry struct {
	Key       string    `gorm:"column:state_key;primaryKey;size:100"`
	Kind      uint8     `gorm:"column:kind;not null;index"`
	Value     []byte    `gorm:"column:value;type:blob;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for DBEntry
func (DBEntry) TableName() string {
	return "entries"
}

// DBCommit records one applied set of effects
type DBCommit struct {
	gorm.Model
	Height   uint64 `gorm:"column:height;not null;unique;index"`
	RootHash string `gorm:"column:root_hash;not null;index;size:64"`
	Writes   int    `gorm:"column:writes;not null"`
}

// TableName specifies the table name for DBCommit
func (DBCommit) TableName() string {
	return "commits"
}

// record is the CBOR layout of a StoredValue
type record struct {
	Kind        uint8             `cbor:"1,keyasint"`
	CLType      []byte            `cbor:"2,keyasint,omitempty"`
	CLBytes     []byte            `cbor:"3,keyasint,omitempty"`
	AccountHash []byte            `cbor:"4,keyasint,omitempty"`
	MainPurse   []byte            `cbor:"5,keyasint,omitempty"`
	PackageHash []byte            `cbor:"6,keyasint,omitempty"`
	Module      string            `cbor:"7,keyasint,omitempty"`
	EntryPoints []string          `cbor:"8,keyasint,omitempty"`
	NamedKeys   map[string][]byte `cbor:"9,keyasint,omitempty"`
	SeedAddr    []byte            `cbor:"10,keyasint,omitempty"`
	ItemKey     string            `cbor:"11,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("failed to create cbor encoder: %v", err))
	}
	err = state.Register(state.DBType, state.Backend{
		New:        NewGlobalState,
		Defaults:   state.Params{"db_path": defaultDBPath},
		Persistent: true,
	})
	if err != nil {
		panic(err)
	}
}

// GlobalState implements state.GlobalState using SQLite with GORM
type GlobalState struct {
	db     *gorm.DB
	root   state.RootHash
	height uint64
}

// NewGlobalState opens (or creates) the database at params["db_path"]
func NewGlobalState(params state.Params) (state.GlobalState, error) {
	dbPath, _ := params["db_path"].(string)
	if dbPath == "" {
		return nil, fmt.Errorf("%w: db_path is empty", state.ErrInvalidParam)
	}
	return Open(dbPath)
}

// Open opens (or creates) the database at dbPath
func Open(dbPath string) (*GlobalState, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&DBEntry{}, &DBCommit{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &GlobalState{db: db}
	var last DBCommit
	result := db.Order("height desc").Limit(1).Find(&last)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load last commit: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		root, err := parseRoot(last.RootHash)
		if err != nil {
			return nil, err
		}
		s.root = root
		s.height = last.Height
	}
	return s, nil
}

func parseRoot(s string) (state.RootHash, error) {
	var root state.RootHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(root) {
		return root, fmt.Errorf("invalid root hash %q", s)
	}
	copy(root[:], b)
	return root, nil
}

func (s *GlobalState) Get(key types.Key) (types.StoredValue, error) {
	var entry DBEntry
	result := s.db.Where("state_key = ?", key.Normalize().Formatted()).First(&entry)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return types.StoredValue{}, state.ErrNotFound
	}
	if result.Error != nil {
		return types.StoredValue{}, fmt.Errorf("failed to get entry: %w", result.Error)
	}
	return decodeRecord(entry.Value)
}

func (s *GlobalState) Commit(effects *state.Effects) (state.RootHash, error) {
	entries := make([]DBEntry, 0, effects.Len())
	for _, k := range effects.Keys() {
		v, _ := effects.Get(k)
		b, err := encodeRecord(v)
		if err != nil {
			return state.RootHash{}, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		entries = append(entries, DBEntry{
			Key:       k.Formatted(),
			Kind:      uint8(v.Kind),
			Value:     b,
			UpdatedAt: time.Now(),
		})
	}

	root := state.NextRoot(s.root, effects)
	height := s.height + 1
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entries[i]).Error; err != nil {
				return fmt.Errorf("failed to write entry %s: %w", entries[i].Key, err)
			}
		}
		commit := &DBCommit{Height: height, RootHash: root.String(), Writes: len(entries)}
		if err := tx.Create(commit).Error; err != nil {
			return fmt.Errorf("failed to record commit: %w", err)
		}
		return nil
	})
	if err != nil {
		return state.RootHash{}, err
	}

	s.root = root
	s.height = height
	slog.Debug("committed effects", "backend", state.DBType, "writes", len(entries), "root", root, "height", height)
	return root, nil
}

func (s *GlobalState) RootHash() state.RootHash {
	return s.root
}

// Height returns the number of commits applied to the database
func (s *GlobalState) Height() uint64 {
	return s.height
}

func (s *GlobalState) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

func encodeNamedKeys(nk types.NamedKeys) map[string][]byte {
	if len(nk) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(nk))
	for name, key := range nk {
		out[name] = key.Bytes()
	}
	return out
}

func decodeNamedKeys(m map[string][]byte) (types.NamedKeys, error) {
	out := make(types.NamedKeys, len(m))
	for name, b := range m {
		k, err := types.KeyFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("invalid named key %q: %w", name, err)
		}
		out[name] = k
	}
	return out, nil
}

func encodeRecord(v types.StoredValue) ([]byte, error) {
	rec := record{Kind: uint8(v.Kind)}
	switch v.Kind {
	case types.StoredCLValue:
		cv, ok := v.AsCLValue()
		if !ok {
			return nil, errors.New("missing cl value")
		}
		rec.CLType = cv.Type.Bytes()
		rec.CLBytes = cv.Bytes
	case types.StoredAccount:
		a, ok := v.AsAccount()
		if !ok {
			return nil, errors.New("missing account")
		}
		rec.AccountHash = a.Hash[:]
		rec.MainPurse = types.URefKey(a.MainPurse).Bytes()
		rec.NamedKeys = encodeNamedKeys(a.NamedKeys)
	case types.StoredContract:
		c, ok := v.AsContract()
		if !ok {
			return nil, errors.New("missing contract")
		}
		rec.PackageHash = c.PackageHash[:]
		rec.Module = c.Module
		rec.EntryPoints = c.EntryPoints
		rec.NamedKeys = encodeNamedKeys(c.NamedKeys)
	case types.StoredDictionary:
		d, ok := v.AsDictionary()
		if !ok {
			return nil, errors.New("missing dictionary value")
		}
		rec.CLType = d.Value.Type.Bytes()
		rec.CLBytes = d.Value.Bytes
		rec.SeedAddr = d.SeedAddr[:]
		rec.ItemKey = d.ItemKey
	default:
		return nil, fmt.Errorf("unknown stored value kind %s", v.Kind)
	}
	return encMode.Marshal(rec)
}

func decodeCLValue(rec record) (types.CLValue, error) {
	ct, err := types.CLTypeFromBytes(rec.CLType)
	if err != nil {
		return types.CLValue{}, fmt.Errorf("invalid cl type: %w", err)
	}
	b := rec.CLBytes
	if b == nil {
		b = []byte{}
	}
	return types.CLValue{Type: ct, Bytes: b}, nil
}

func copyAddr(dst *[types.AddrLength]byte, src []byte) error {
	if len(src) != types.AddrLength {
		return fmt.Errorf("invalid address length %d", len(src))
	}
	copy(dst[:], src)
	return nil
}

func decodeRecord(b []byte) (types.StoredValue, error) {
	var rec record
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return types.StoredValue{}, fmt.Errorf("failed to decode record: %w", err)
	}
	switch types.StoredValueKind(rec.Kind) {
	case types.StoredCLValue:
		cv, err := decodeCLValue(rec)
		if err != nil {
			return types.StoredValue{}, err
		}
		return types.NewStoredCLValue(cv), nil
	case types.StoredAccount:
		var a types.Account
		if err := copyAddr((*[types.AddrLength]byte)(&a.Hash), rec.AccountHash); err != nil {
			return types.StoredValue{}, err
		}
		purse, err := types.KeyFromBytes(rec.MainPurse)
		if err != nil {
			return types.StoredValue{}, fmt.Errorf("invalid main purse: %w", err)
		}
		a.MainPurse, _ = purse.AsURef()
		if a.NamedKeys, err = decodeNamedKeys(rec.NamedKeys); err != nil {
			return types.StoredValue{}, err
		}
		return types.NewStoredAccount(a), nil
	case types.StoredContract:
		c := types.Contract{Module: rec.Module, EntryPoints: rec.EntryPoints}
		if err := copyAddr((*[types.AddrLength]byte)(&c.PackageHash), rec.PackageHash); err != nil {
			return types.StoredValue{}, err
		}
		var err error
		if c.NamedKeys, err = decodeNamedKeys(rec.NamedKeys); err != nil {
			return types.StoredValue{}, err
		}
		return types.NewStoredContract(c), nil
	case types.StoredDictionary:
		cv, err := decodeCLValue(rec)
		if err != nil {
			return types.StoredValue{}, err
		}
		d := types.DictionaryValue{Value: cv, ItemKey: rec.ItemKey}
		if err := copyAddr(&d.SeedAddr, rec.SeedAddr); err != nil {
			return types.StoredValue{}, err
		}
		return types.NewStoredDictionary(d), nil
	}
	return types.StoredValue{}, fmt.Errorf("unknown stored value kind %d", rec.Kind)
}
