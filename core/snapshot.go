package core

// snapshot.go implements the one-shot snapshot-adoption protocol: a
// joining node requests every peer's ledger, hash-votes on the responses,
// and installs the most frequent one. The canonical serialization used for
// hashing sorts every map by key and base-64 encodes byte-string keys so
// two honest nodes with identical state always agree on the hash; Go's
// nondeterministic map iteration order would otherwise silently break
// equality voting.

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// SnapshotAdoption collects peer ledger responses and tallies them once.
type SnapshotAdoption struct {
	mu        sync.Mutex
	cond      *sync.Cond
	responses []PeerLedgerResponseMsg
	order     []int // arrival index, parallel to responses
}

// NewSnapshotAdoption constructs an empty collector.
func NewSnapshotAdoption() *SnapshotAdoption {
	s := &SnapshotAdoption{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddResponse records a peer's reported ledger and wakes any waiter.
func (s *SnapshotAdoption) AddResponse(resp PeerLedgerResponseMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, len(s.responses))
	s.responses = append(s.responses, resp)
	s.cond.Broadcast()
}

// AwaitAndTally blocks until activePeerCount responses have arrived or
// timeout elapses, then selects the majority snapshot: responses are
// canonically hashed, grouped, and the hash with the highest count wins,
// ties broken by first arrival within the winning group. ok is false if no
// response arrived at all, signaling the caller to keep local state
// unchanged.
func (s *SnapshotAdoption) AwaitAndTally(activePeerCount int, timeout time.Duration) (resp PeerLedgerResponseMsg, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for len(s.responses) < activePeerCount {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitWithTimeout(s.cond, remaining)
	}

	if len(s.responses) == 0 {
		return PeerLedgerResponseMsg{}, false
	}

	counts := make(map[string]int)
	firstIndex := make(map[string]int)
	hashes := make([]string, len(s.responses))
	for i, r := range s.responses {
		h := CanonicalHash(r)
		hashes[i] = h
		counts[h]++
		if _, seen := firstIndex[h]; !seen {
			firstIndex[h] = i
		}
	}

	bestHash, bestCount := "", -1
	for h, c := range counts {
		if c > bestCount || (c == bestCount && firstIndex[h] < firstIndex[bestHash]) {
			bestHash, bestCount = h, c
		}
	}
	return s.responses[firstIndex[bestHash]], true
}

// canonicalKV is one sorted, base-64-keyed entry of a canonicalized map.
type canonicalKV struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// canonicalForm is the deterministic representation of a ledger snapshot
// hashed for majority voting.
type canonicalForm struct {
	Blockchain     []Block       `json:"blockchain"`
	AccountsVec    []Account     `json:"accounts_vec"`
	AccountsMap    []canonicalKV `json:"accounts_map"`
	UsedSignatures []canonicalKV `json:"used_zk_proofs"`
}

// CanonicalHash returns the SHA-256 hex digest of resp's canonical form.
func CanonicalHash(resp PeerLedgerResponseMsg) string {
	form := canonicalForm{
		Blockchain:     resp.Blockchain,
		AccountsVec:    resp.AccountsVec,
		AccountsMap:    canonicalizeUint64Map(resp.AccountsMap),
		UsedSignatures: canonicalizeSigMap(resp.UsedSignatures),
	}
	data, err := json.Marshal(form)
	if err != nil {
		// Marshaling a well-formed canonicalForm cannot fail; treat it as
		// an empty snapshot rather than propagating a panic into a vote.
		data = []byte{}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalizeUint64Map sorts by the original key and base-64 encodes the
// key's byte-string form.
func canonicalizeUint64Map(m map[string]uint64) []canonicalKV {
	keys := sortedKeys(m)
	out := make([]canonicalKV, 0, len(keys))
	for _, k := range keys {
		out = append(out, canonicalKV{Key: keyToBase64(k), Value: m[k]})
	}
	return out
}

// canonicalizeSigMap sorts by key and sorts each signature list so
// insertion/iteration order never affects the resulting hash.
func canonicalizeSigMap(m map[string][]string) []canonicalKV {
	keys := sortedKeysOfSigMap(m)
	out := make([]canonicalKV, 0, len(keys))
	for _, k := range keys {
		sigs := append([]string(nil), m[k]...)
		sort.Strings(sigs)
		out = append(out, canonicalKV{Key: keyToBase64(k), Value: sigs})
	}
	return out
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysOfSigMap(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// keyToBase64 renders a hex-encoded public key (our AccountsMap/
// UsedSignatures key form) as base-64 of its raw bytes. Keys that don't
// decode as hex (defensive: a malformed peer response) fall back to
// base-64 of the raw string so hashing never panics.
func keyToBase64(hexKey string) string {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		raw = []byte(hexKey)
	}
	return base64.StdEncoding.EncodeToString(raw)
}
