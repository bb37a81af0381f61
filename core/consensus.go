package core

// consensus.go implements the per-request broadcast/collect/tally engine.
// A request's pending state is a condition-variable-guarded predicate
// rather than a channel fan-in: every vote fires a wake, the waiter
// re-checks under the lock. The wait is bounded so a peer dying mid-vote
// resolves to NO instead of deadlocking the round.

import (
	"sync"
	"time"
)

// pendingVote is one in-flight request's consensus state, keyed by request
// hash. Destroyed after tally.
type pendingVote struct {
	cond          *sync.Cond
	localDecision bool
	yes           int
	no            int
	voted         map[string]bool
	targetVotes   int // active peer count snapshotted at broadcast time, minus self
	tallied       bool
	verdict       bool
}

// ConsensusEngine runs the per-request state machine: PROPOSED -> AWAITING
// -> TALLIED -> DONE.
type ConsensusEngine struct {
	mu      sync.Mutex
	pending map[string]*pendingVote
}

// NewConsensusEngine constructs an empty engine.
func NewConsensusEngine() *ConsensusEngine {
	return &ConsensusEngine{pending: make(map[string]*pendingVote)}
}

// Open moves a request into AWAITING: it records the local decision (self
// vote, always counted) and the number of peer votes required before the
// completion predicate can fire. targetVotes is the active peer count
// sampled once at broadcast time; a peer going down mid-wait is handled by
// the bounded wait in AwaitVerdict, not by re-sampling.
func (c *ConsensusEngine) Open(reqHash string, localDecision bool, targetVotes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[reqHash] = &pendingVote{
		cond:          sync.NewCond(&c.mu),
		localDecision: localDecision,
		voted:         make(map[string]bool),
		targetVotes:   targetVotes,
	}
}

// RecordResponse registers a peer's vote on reqHash. Each voter address is
// counted at most once. A no-op if the request is unknown (e.g. a vote
// arriving after the round already tallied and was cleaned up).
func (c *ConsensusEngine) RecordResponse(reqHash, voterAddr string, decision bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pv, ok := c.pending[reqHash]
	if !ok || pv.voted[voterAddr] {
		return
	}
	pv.voted[voterAddr] = true
	if decision {
		pv.yes++
	} else {
		pv.no++
	}
	pv.cond.Broadcast()
}

// AwaitVerdict blocks until every targeted peer has voted or timeout
// elapses, then tallies: the self vote plus every recorded peer vote,
// majority strictly-greater-than required for YES, ties resolving to NO.
// Targeted peers that have not voted by the deadline are counted as NO.
func (c *ConsensusEngine) AwaitVerdict(reqHash string, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pv, ok := c.pending[reqHash]
	if !ok {
		return false
	}

	deadline := time.Now().Add(timeout)
	for pv.yes+pv.no < pv.targetVotes {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitWithTimeout(pv.cond, remaining)
	}

	yes, no := pv.yes, pv.no
	if missing := pv.targetVotes - (yes + no); missing > 0 {
		no += missing
	}
	if pv.localDecision {
		yes++
	} else {
		no++
	}
	pv.tallied = true
	pv.verdict = yes > no
	return pv.verdict
}

// Close discards the request's pending state once the tally is recorded.
func (c *ConsensusEngine) Close(reqHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqHash)
}

// waitWithTimeout releases cond.L, waits on cond up to timeout, and
// re-acquires cond.L before returning, emulating a condition variable with
// a bounded wait (the stdlib sync.Cond has no native timeout).
func waitWithTimeout(cond *sync.Cond, timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
