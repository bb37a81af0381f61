package core

import (
	"testing"
	"time"
)

func TestConsensusEngineMajorityYes(t *testing.T) {
	c := NewConsensusEngine()
	c.Open("req1", true, 2)
	c.RecordResponse("req1", "peer-a", true)
	c.RecordResponse("req1", "peer-b", false)
	verdict := c.AwaitVerdict("req1", 200*time.Millisecond)
	if !verdict {
		t.Fatalf("expected YES verdict (2 yes vs 1 no), got NO")
	}
	c.Close("req1")
}

func TestConsensusEngineTieResolvesNo(t *testing.T) {
	c := NewConsensusEngine()
	c.Open("req2", true, 1)
	c.RecordResponse("req2", "peer-a", false)
	verdict := c.AwaitVerdict("req2", 200*time.Millisecond)
	if verdict {
		t.Fatalf("expected tie (1 yes local vs 1 no peer) to resolve NO")
	}
	c.Close("req2")
}

func TestConsensusEngineDuplicateVoteIgnored(t *testing.T) {
	c := NewConsensusEngine()
	c.Open("req3", true, 2)
	c.RecordResponse("req3", "peer-a", false)
	c.RecordResponse("req3", "peer-a", false) // duplicate, must not double-count
	c.RecordResponse("req3", "peer-b", true)
	verdict := c.AwaitVerdict("req3", 200*time.Millisecond)
	// no=1 (peer-a, once), yes=1 (peer-b) + local YES -> yes=2, no=1 -> YES;
	// counting peer-a twice would tie 2-2 and resolve NO
	if !verdict {
		t.Fatalf("expected YES verdict, duplicate vote must not have been double-counted")
	}
	c.Close("req3")
}

func TestConsensusEngineMissingVoterTimesOutToNo(t *testing.T) {
	c := NewConsensusEngine()
	c.Open("req4", true, 3) // expects 3 peer votes, only 1 arrives
	c.RecordResponse("req4", "peer-a", true)
	start := time.Now()
	verdict := c.AwaitVerdict("req4", 100*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected AwaitVerdict to block for the full timeout, elapsed %v", elapsed)
	}
	// yes = 1 (peer-a) + 1 (local) = 2, no = 2 (missing peers) -> tie -> NO
	if verdict {
		t.Fatalf("expected missing voters to count as NO, tying the round to a NO verdict")
	}
	c.Close("req4")
}
