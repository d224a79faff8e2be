// Package cachedb persists contract metadata under a goleveldb store,
// with a bounded in-memory LRU in front so repeated lookups of active
// contracts never touch disk.
package cachedb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/syndtr/goleveldb/leveldb"
)

// hotCacheSize bounds the in-memory layer.
const hotCacheSize = 1000

// contractPrefix + address -> JSON-encoded contract info.
var contractPrefix = []byte("c")

var (
	hotHitMeter  = gethmetrics.NewRegisteredMeter("cachedb/hot/hits", nil)
	coldHitMeter = gethmetrics.NewRegisteredMeter("cachedb/cold/hits", nil)
	missMeter    = gethmetrics.NewRegisteredMeter("cachedb/misses", nil)
)

// DB is the layered contract-metadata cache.
type DB struct {
	db  *leveldb.DB
	hot *lru.Cache[common.Address, []byte]
}

// Open opens (or creates) the cache at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &DB{
		db:  db,
		hot: lru.NewCache[common.Address, []byte](hotCacheSize),
	}, nil
}

// Close flushes and closes the underlying store.
func (d *DB) Close() error {
	return d.db.Close()
}

// Contract returns the cached blob for the address, or ok == false when
// the address was never cached.
func (d *DB) Contract(addr common.Address) ([]byte, bool, error) {
	if blob, ok := d.hot.Get(addr); ok {
		hotHitMeter.Mark(1)
		return blob, true, nil
	}
	blob, err := d.db.Get(contractKey(addr), nil)
	if err == leveldb.ErrNotFound {
		missMeter.Mark(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	coldHitMeter.Mark(1)
	d.hot.Add(addr, blob)
	return blob, true, nil
}

// PutContract stores the blob for the address in both layers.
func (d *DB) PutContract(addr common.Address, blob []byte) error {
	if err := d.db.Put(contractKey(addr), blob, nil); err != nil {
		return err
	}
	d.hot.Add(addr, blob)
	return nil
}

func contractKey(addr common.Address) []byte {
	return append(contractPrefix, addr.Bytes()...)
}
