package core

// bft_estimate.go is a Monte Carlo diagnostic estimating how often a
// consensus round reaches a decisive (non-tie) majority under random peer
// unresponsiveness. It does not govern the live protocol; the consensus
// engine's tie-break rule and bounded wait (consensus.go) are authoritative.
// This is an operator-facing "what if N peers are flaky" estimate, exposed
// by the CLI's diagnostic subcommand, modeling simple-majority liveness
// under crash/drop faults rather than full Byzantine fault tolerance.

import (
	"crypto/rand"
	"math/big"
)

// EstimateQuorumSuccess runs rounds trials of a simple-majority vote among
// totalPeers (including self, whose vote always counts), where each peer
// other than self independently fails to respond within the consensus
// timeout with probability dropProb. A round "succeeds" when the responding
// peers plus self outnumber the peers that did not respond; the yes/no
// content of the votes is not simulated. Returns the fraction of successful
// rounds, or 0 for invalid input.
func EstimateQuorumSuccess(totalPeers int, dropProb float64, rounds int) float64 {
	if totalPeers <= 0 || rounds <= 0 {
		return 0
	}
	if dropProb < 0 || dropProb >= 1 {
		return 0
	}

	others := totalPeers - 1
	success := 0
	for i := 0; i < rounds; i++ {
		responded := 0
		for j := 0; j < others; j++ {
			rf, err := randFloat64()
			if err != nil {
				return 0
			}
			if rf >= dropProb {
				responded++
			}
		}
		// self vote always counts; a round succeeds when the counted
		// votes (responded + self) outnumber the peers who didn't
		// respond.
		counted := responded + 1
		if counted > totalPeers-counted {
			success++
		}
	}
	return float64(success) / float64(rounds)
}

// randFloat64 returns a cryptographically secure random float64 in [0, 1).
func randFloat64() (float64, error) {
	const maxBits = 53
	max := big.NewInt(1 << maxBits)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	return float64(n.Int64()) / float64(1<<maxBits), nil
}
