package database

import (
	"math/rand"
	"time"

	"kvcore/lib/logger"
)

const (
	expireSampleSize = 20
	expireMaxRounds  = 4
)

func (db *DB) expireLoop() {
	defer db.stopped.Done()
	ticker := time.NewTicker(db.expireTicker)
	defer ticker.Stop()

	for {
		select {
		case <-db.stop:
			return
		case now := <-ticker.C:
			if n := db.expireCycle(now); n > 0 {
				logger.Debug("expired keys reclaimed", "backend_id", db.id, "count", n)
			}
		}
	}
}

// expireCycle samples keys and reclaims expired ones, repeating while more
// than a quarter of a sample had expired.
func (db *DB) expireCycle(now time.Time) int {
	reclaimed := 0
	for round := 0; round < expireMaxRounds; round++ {
		keys := db.data.RandomKeys(expireSampleSize, rand.Intn(1<<16))
		if len(keys) == 0 {
			break
		}
		expired := 0
		for _, key := range keys {
			if db.reclaim([]byte(key), now) {
				expired++
			}
		}
		reclaimed += expired
		if expired*4 <= len(keys) {
			break
		}
	}
	return reclaimed
}

// reclaim removes key if it is expired at now, under the key's write lock.
func (db *DB) reclaim(key []byte, now time.Time) bool {
	db.locker.Lock(key)
	defer db.locker.UnLock(key)

	e, ok := db.data.Get(string(key))
	if !ok || !e.expired(now) {
		return false
	}
	return db.data.RemoveIf(string(key), func(cur *entity) bool { return cur == e })
}
