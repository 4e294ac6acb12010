package p2p

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	klog "github.com/trinity-chain/trinitynode/internal/log"
	"github.com/trinity-chain/trinitynode/internal/storage"
)

const (
	peerKeyPrefix = "peer/"

	// failureThreshold is the consecutive-failure count past which a peer
	// is dialed on a backoff schedule instead of immediately.
	failureThreshold = 3

	backoffInitialInterval = 5 * time.Second
	backoffMaxInterval     = 10 * time.Minute
)

// PeerRecord is a persisted peer entry: an opaque ID, its last-known
// height, and enough bookkeeping to resume backoff across restarts.
type PeerRecord struct {
	ID           string `json:"id"`
	Addr         string `json:"addr"`
	LastSeen     int64  `json:"last_seen"`
	Height       uint64 `json:"height"`
	FailureCount int    `json:"failure_count"`
}

// PeerRegistry tracks known peers, their last-known height, and a
// consecutive-failure counter feeding dial backoff. It is a resource
// independent of the (chain, utxo, mempool) triple and must never be
// locked while that triple's lock is held.
type PeerRegistry struct {
	mu       sync.RWMutex
	db       storage.DB // nil disables persistence (tests, ephemeral nodes)
	records  map[string]*PeerRecord
	backoffs map[string]*backoff.ExponentialBackOff
	nextTry  map[string]time.Time
}

// NewPeerRegistry creates a registry. db may be nil to disable persistence.
func NewPeerRegistry(db storage.DB) *PeerRegistry {
	return &PeerRegistry{
		db:       db,
		records:  make(map[string]*PeerRecord),
		backoffs: make(map[string]*backoff.ExponentialBackOff),
		nextTry:  make(map[string]time.Time),
	}
}

func peerKey(addr string) []byte {
	return []byte(peerKeyPrefix + addr)
}

// Load restores persisted peer records into memory.
func (r *PeerRegistry) Load() error {
	if r.db == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.ForEach([]byte(peerKeyPrefix), func(key, value []byte) error {
		var rec PeerRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records rather than fail the whole load.
		}
		r.records[rec.Addr] = &rec
		return nil
	})
}

// Remember registers a newly learned peer address if it isn't already
// known, generating it a fresh opaque ID.
func (r *PeerRegistry) Remember(addr string) *PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[addr]; ok {
		return rec
	}
	rec := &PeerRecord{ID: uuid.NewString(), Addr: addr, LastSeen: time.Now().Unix()}
	r.records[addr] = rec
	r.persistLocked(rec)
	return rec
}

// RecordSuccess marks a successful exchange with a peer: resets its failure
// counter and backoff, and updates its last-known height.
func (r *PeerRegistry) RecordSuccess(addr string, height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		rec = &PeerRecord{ID: uuid.NewString(), Addr: addr}
		r.records[addr] = rec
	}
	rec.FailureCount = 0
	rec.Height = height
	rec.LastSeen = time.Now().Unix()
	delete(r.backoffs, addr)
	delete(r.nextTry, addr)
	r.persistLocked(rec)
}

// RecordFailure increments a peer's consecutive-failure counter. Once it
// crosses failureThreshold, subsequent dials are gated by exponential
// backoff rather than retried immediately.
func (r *PeerRegistry) RecordFailure(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		rec = &PeerRecord{ID: uuid.NewString(), Addr: addr}
		r.records[addr] = rec
	}
	rec.FailureCount++
	r.persistLocked(rec)

	if rec.FailureCount < failureThreshold {
		return
	}

	bo, ok := r.backoffs[addr]
	if !ok {
		bo = backoff.NewExponentialBackOff()
		bo.InitialInterval = backoffInitialInterval
		bo.MaxInterval = backoffMaxInterval
		bo.MaxElapsedTime = 0 // never give up; the caller decides when to stop dialing
		r.backoffs[addr] = bo
	}
	r.nextTry[addr] = time.Now().Add(bo.NextBackOff())

	klog.WithComponent("p2p").Warn().
		Str("peer", addr).
		Str("peer_id", pretty(rec.ID)).
		Int("failures", rec.FailureCount).
		Msg("peer dial backing off")
}

// ShouldDial reports whether addr is currently clear to dial: either it has
// never crossed the failure threshold, or its backoff window has elapsed.
func (r *PeerRegistry) ShouldDial(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, backing := r.nextTry[addr]
	return !backing || time.Now().After(until)
}

// Snapshot returns every known peer address, for GetPeers responses and for
// the outbound sync loop to iterate.
func (r *PeerRegistry) Snapshot() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

func (r *PeerRegistry) persistLocked(rec *PeerRecord) {
	if r.db == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.db.Put(peerKey(rec.Addr), data); err != nil {
		klog.WithComponent("p2p").Warn().Err(err).Str("peer", rec.Addr).Msg("failed to persist peer record")
	}
}

// pretty is a small helper used by log call sites that want a bounded
// identifier rather than a full address or uuid in log lines.
func pretty(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
