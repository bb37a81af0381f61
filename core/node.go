package core

// node.go wires every component into the running ValidatorNode: the
// request-ingress loop, the heartbeat broadcaster, and the one-shot
// snapshot adoption a fresh node runs before joining the active set. The
// accept-one-connection-per-task shape and the logrus.WithFields structured
// event logging match this package's other long-running services. The
// commit path's single commitMu guarantees a block append and the state
// mutation it records become visible to concurrent readers together.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Clock abstracts wall-clock time so tests can inject a fixed value;
// defaults to time.Now().Unix().
type Clock func() int64

func defaultClock() int64 { return time.Now().Unix() }

// NodeConfig carries everything a ValidatorNode needs at construction that
// isn't already owned by one of its components.
type NodeConfig struct {
	RegistryPath       string
	HeartbeatPeriod    time.Duration
	HeartbeatTimeout   time.Duration
	SnapshotDelay      time.Duration
	IntegrationTest    bool
	PersistDir         string
	PersistGzip        bool
	DialTimeout        time.Duration
}

// ValidatorNode is the full running node: account state, block log, replay
// guard, peer registry, and consensus/snapshot engines, plus the network and
// scheduling glue that drives them.
type ValidatorNode struct {
	cfg     NodeConfig
	log     *logrus.Logger
	clock   Clock

	Accounts  *AccountIndex
	Log       *BlockLog
	Replay    *ReplayGuard
	Registry  *PeerRegistry
	Consensus *ConsensusEngine
	Snapshot  *SnapshotAdoption
	Metrics   *Metrics

	selfAddr string
	listener net.Listener

	commitMu sync.Mutex // guards block-append + state-mutation atomicity

	decisionsMu sync.Mutex
	decisions   map[string]bool // request_hash -> this node's local decision

	closeOnce sync.Once
	done      chan struct{}
}

// NewValidatorNode constructs a node with all components initialized but
// not yet bound or started. Call Start to bring it up.
func NewValidatorNode(cfg NodeConfig, log *logrus.Logger) (*ValidatorNode, error) {
	registry, err := LoadPeerRegistry(cfg.RegistryPath, cfg.HeartbeatTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.HeartbeatPeriod == 0 {
		cfg.HeartbeatPeriod = 5 * time.Second
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 10 * time.Second
	}
	if cfg.SnapshotDelay == 0 {
		cfg.SnapshotDelay = 5 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	return &ValidatorNode{
		cfg:       cfg,
		log:       log,
		clock:     defaultClock,
		Accounts:  NewAccountIndex(),
		Log:       NewBlockLog(),
		Replay:    NewReplayGuard(),
		Registry:  registry,
		Consensus: NewConsensusEngine(),
		Snapshot:  NewSnapshotAdoption(),
		Metrics:   NewMetrics(),
		decisions: make(map[string]bool),
		done:      make(chan struct{}),
	}, nil
}

// Start binds to the first registry port this node can claim, emits the
// Genesis block, begins heartbeating, schedules snapshot adoption, and
// starts the accept loop. Returns once bound; the accept loop runs in its
// own goroutine. A bind failure (no bindable port in the registry) is the
// one startup error that is fatal.
func (n *ValidatorNode) Start() error {
	ln, addr, err := bindFirstAvailable(n.Registry.Nodes)
	if err != nil {
		return fmt.Errorf("%w: no bindable registry port: %v", ErrLocalIO, err)
	}
	n.listener = ln
	n.selfAddr = addr
	n.log.WithField("address", addr).Info("validator node bound")

	genesis := NewGenesisBlock(n.clock())
	n.Log.Append(genesis)
	n.persistDump()

	go n.heartbeatLoop()
	go n.runSnapshotAdoption()
	go n.acceptLoop()
	return nil
}

// Stop closes the listener and signals background loops to exit.
func (n *ValidatorNode) Stop() {
	n.closeOnce.Do(func() {
		close(n.done)
		if n.listener != nil {
			n.listener.Close()
		}
	})
}

// SelfAddr returns this node's bound "address:port" string.
func (n *ValidatorNode) SelfAddr() string { return n.selfAddr }

// bindFirstAvailable tries every registry port in order and returns the
// first successful listener.
func bindFirstAvailable(nodes []PeerInfo) (net.Listener, string, error) {
	var lastErr error
	for _, p := range nodes {
		addr := p.AddrPort()
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, addr, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("exhausted %d registry entries, last error: %v", len(nodes), lastErr)
}

// acceptLoop accepts one connection at a time and spawns a goroutine per
// connection: one acceptor, one task per inbound connection.
func (n *ValidatorNode) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.done:
				return
			default:
				n.log.WithError(err).Warn("accept failed")
				return
			}
		}
		go n.handleConn(conn)
	}
}

// handleConn reads the entire payload until EOF, parses the tagged
// envelope, and dispatches. Unknown tags and parse failures are logged and
// discarded, never fatal.
func (n *ValidatorNode) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	raw, err := readAll(conn)
	if err != nil {
		n.log.WithError(err).Warn("read failed")
		return
	}
	if len(raw) == 0 {
		return
	}

	action, err := ParseAction(raw)
	if err != nil {
		n.log.WithError(err).Warn("malformed envelope")
		return
	}

	switch action {
	case ActionAccountCreation:
		n.handleAccountCreation(raw)
	case ActionTransaction:
		n.handleTransaction(raw)
	case ActionFaucet:
		n.handleFaucet(raw)
	case ActionConsensusRequest:
		n.handleConsensusRequest(raw)
	case ActionConsensusResponse:
		n.handleConsensusResponse(raw, remote)
	case ActionHeartBeat:
		n.handleHeartBeat(raw)
	case ActionPeerLedgerRequest:
		n.handlePeerLedgerRequest(raw)
	case ActionPeerLedgerResponse:
		n.handlePeerLedgerResponse(raw)
	default:
		n.log.WithField("action", action).Warn("unknown action")
	}
}

func readAll(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		k, err := r.Read(tmp)
		if k > 0 {
			buf = append(buf, tmp[:k]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

// --- client-request handlers ---

func (n *ValidatorNode) handleAccountCreation(raw []byte) {
	var msg AccountCreationMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed AccountCreation")
		return
	}
	reqHash := RequestHash(raw)
	decision := DecideAccountCreation(n.Accounts, msg.PublicKey, msg.PublicKeyHash)
	n.recordLocalDecision(reqHash, decision)
	n.Metrics.observeDecision(ActionAccountCreation, decision)

	verdict := n.runConsensusRound(reqHash, decision)
	n.log.WithFields(logrus.Fields{"request_hash": reqHash, "decision": verdict, "action": ActionAccountCreation}).Info("request tallied")
	if !verdict {
		return
	}

	n.commitMu.Lock()
	defer n.commitMu.Unlock()
	blk, err := ApplyAccountCreation(n.Accounts, msg.PublicKey, msg.PublicKeyHash, n.clock())
	if err != nil {
		n.log.WithError(err).Warn("apply AccountCreation failed after YES verdict")
		return
	}
	n.Log.Append(blk)
	n.Metrics.observeCommit()
	n.persistDump()
}

func (n *ValidatorNode) handleTransaction(raw []byte) {
	var msg TransactionMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed Transaction")
		return
	}
	reqHash := RequestHash(raw)
	decision := DecideTransaction(n.Accounts, n.Replay, msg.SenderPublicKey, msg.Signature, msg.RecipientPublicKey, msg.Amount, msg.Nonce)
	n.recordLocalDecision(reqHash, decision)
	n.Metrics.observeDecision(ActionTransaction, decision)

	verdict := n.runConsensusRound(reqHash, decision)
	n.log.WithFields(logrus.Fields{"request_hash": reqHash, "decision": verdict, "action": ActionTransaction}).Info("request tallied")
	if !verdict {
		if n.cfg.IntegrationTest {
			n.writeFailedTransactionMarker(msg)
		}
		return
	}

	n.commitMu.Lock()
	defer n.commitMu.Unlock()
	blk, err := ApplyTransaction(n.Accounts, n.Replay, msg.SenderPublicKey, msg.Signature, msg.RecipientPublicKey, msg.Amount, n.clock())
	if err != nil {
		n.log.WithError(err).Warn("apply Transaction failed after YES verdict")
		return
	}
	n.Log.Append(blk)
	n.Metrics.observeCommit()
	n.persistDump()
}

func (n *ValidatorNode) handleFaucet(raw []byte) {
	var msg FaucetMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed Faucet")
		return
	}
	reqHash := RequestHash(raw)
	decision := DecideFaucet(n.Accounts, msg.PublicKey)
	n.recordLocalDecision(reqHash, decision)
	n.Metrics.observeDecision(ActionFaucet, decision)

	verdict := n.runConsensusRound(reqHash, decision)
	n.log.WithFields(logrus.Fields{"request_hash": reqHash, "decision": verdict, "action": ActionFaucet}).Info("request tallied")
	if !verdict {
		return
	}

	n.commitMu.Lock()
	defer n.commitMu.Unlock()
	blk, err := ApplyFaucet(n.Accounts, msg.PublicKey, n.clock())
	if err != nil {
		n.log.WithError(err).Warn("apply Faucet failed after YES verdict")
		return
	}
	n.Log.Append(blk)
	n.Metrics.observeCommit()
	n.persistDump()
}

func (n *ValidatorNode) recordLocalDecision(reqHash string, decision bool) {
	n.decisionsMu.Lock()
	defer n.decisionsMu.Unlock()
	n.decisions[reqHash] = decision
}

func (n *ValidatorNode) localDecision(reqHash string) (bool, bool) {
	n.decisionsMu.Lock()
	defer n.decisionsMu.Unlock()
	d, ok := n.decisions[reqHash]
	return d, ok
}

// writeFailedTransactionMarker persists the integration-test rejection
// marker harness scripts assert against.
func (n *ValidatorNode) writeFailedTransactionMarker(msg TransactionMsg) {
	dir := n.cfg.PersistDir
	if dir == "" {
		dir = fmt.Sprintf("Node_%s", n.selfAddr)
	}
	if err := WriteRejectionMarker(dir, "failed_transaction.json", msg); err != nil {
		n.log.WithError(err).Warn("write failed_transaction.json")
	}
}

// --- consensus round ---

// runConsensusRound opens the request, broadcasts ConsensusRequest to every
// other registry entry, awaits the verdict, and closes the round.
func (n *ValidatorNode) runConsensusRound(reqHash string, localDecision bool) bool {
	others := n.Registry.OtherAddresses(n.selfAddr)
	target := n.Registry.ActivePeerCount()
	n.Consensus.Open(reqHash, localDecision, target)
	defer n.Consensus.Close(reqHash)

	req := ConsensusRequestMsg{
		Action:       ActionConsensusRequest,
		RequestHash:  HashHexToBytes(reqHash),
		ResponsePort: n.selfAddr,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		n.log.WithError(err).Warn("marshal ConsensusRequest failed")
	} else {
		for _, addr := range others {
			n.sendAsync(addr, payload)
		}
	}

	return n.Consensus.AwaitVerdict(reqHash, n.cfg.HeartbeatTimeout)
}

func (n *ValidatorNode) handleConsensusRequest(raw []byte) {
	var msg ConsensusRequestMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed ConsensusRequest")
		return
	}
	reqHash := HashBytesToHex(msg.RequestHash)
	decision, ok := n.localDecision(reqHash)
	if !ok {
		decision = false // fail closed: no prior local decision on record
	}
	resp := ConsensusResponseMsg{
		Action:      ActionConsensusResponse,
		RequestHash: msg.RequestHash,
		Decision:    decision,
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		n.log.WithError(err).Warn("marshal ConsensusResponse failed")
		return
	}
	n.sendAsync(msg.ResponsePort, payload)
}

func (n *ValidatorNode) handleConsensusResponse(raw []byte, voterAddr string) {
	var msg ConsensusResponseMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed ConsensusResponse")
		return
	}
	reqHash := HashBytesToHex(msg.RequestHash)
	n.Consensus.RecordResponse(reqHash, voterAddr, msg.Decision)
}

// --- heartbeat ---

func (n *ValidatorNode) heartbeatLoop() {
	ticker := time.NewTicker(n.cfg.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.broadcastHeartbeat()
		}
	}
}

func (n *ValidatorNode) broadcastHeartbeat() {
	msg := HeartBeatMsg{Action: ActionHeartBeat, PortAddress: n.selfAddr}
	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.WithError(err).Warn("marshal HeartBeat failed")
		return
	}
	for _, addr := range n.Registry.OtherAddresses(n.selfAddr) {
		n.sendAsync(addr, payload)
	}
}

func (n *ValidatorNode) handleHeartBeat(raw []byte) {
	var msg HeartBeatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed HeartBeat")
		return
	}
	n.Registry.RecordHeartbeat(msg.PortAddress)
	n.Metrics.observeActivePeers(n.Registry.ActivePeerCount())
}

// --- snapshot adoption ---

// runSnapshotAdoption fires once, cfg.SnapshotDelay after bind.
func (n *ValidatorNode) runSnapshotAdoption() {
	select {
	case <-n.done:
		return
	case <-time.After(n.cfg.SnapshotDelay):
	}

	active := n.Registry.ActivePeerCount()
	others := n.Registry.OtherAddresses(n.selfAddr)
	if len(others) == 0 {
		return // sole node: nothing to adopt from
	}

	req := PeerLedgerRequestMsg{Action: ActionPeerLedgerRequest, ResponsePort: n.selfAddr}
	payload, err := json.Marshal(req)
	if err != nil {
		n.log.WithError(err).Warn("marshal PeerLedgerRequest failed")
		return
	}
	for _, addr := range others {
		n.sendAsync(addr, payload)
	}

	resp, ok := n.Snapshot.AwaitAndTally(active, n.cfg.HeartbeatTimeout)
	if !ok {
		n.log.Info("snapshot adoption: no peer responses, keeping local state")
		return
	}

	n.commitMu.Lock()
	defer n.commitMu.Unlock()
	n.Log.Install(resp.Blockchain)
	n.Accounts.Install(resp.AccountsVec)
	n.Replay.Install(resp.UsedSignatures)
	n.log.WithField("blocks", len(resp.Blockchain)).Info("snapshot adopted")
}

func (n *ValidatorNode) handlePeerLedgerRequest(raw []byte) {
	var msg PeerLedgerRequestMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed PeerLedgerRequest")
		return
	}
	resp := PeerLedgerResponseMsg{
		Action:         ActionPeerLedgerResponse,
		Blockchain:     n.Log.Snapshot(),
		AccountsVec:    n.Accounts.Snapshot(),
		AccountsMap:    n.accountsMap(),
		UsedSignatures: n.Replay.Snapshot(),
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		n.log.WithError(err).Warn("marshal PeerLedgerResponse failed")
		return
	}
	n.sendAsync(msg.ResponsePort, payload)
}

func (n *ValidatorNode) handlePeerLedgerResponse(raw []byte) {
	var msg PeerLedgerResponseMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.log.WithError(err).Warn("malformed PeerLedgerResponse")
		return
	}
	n.Snapshot.AddResponse(msg)
}

func (n *ValidatorNode) accountsMap() map[string]uint64 {
	accs := n.Accounts.Snapshot()
	out := make(map[string]uint64, len(accs))
	for _, a := range accs {
		out[a.PublicKey] = a.Balance
	}
	return out
}

// sendAsync dials addr with a bounded timeout and writes payload, logging
// and discarding any failure. A peer down is simply absent from the vote.
func (n *ValidatorNode) sendAsync(addr string, payload []byte) {
	go func() {
		conn, err := net.DialTimeout("tcp", addr, n.cfg.DialTimeout)
		if err != nil {
			n.log.WithError(err).WithField("peer", addr).Warn("peer unreachable")
			return
		}
		defer conn.Close()
		conn.SetWriteDeadline(time.Now().Add(n.cfg.DialTimeout))
		if _, err := conn.Write(payload); err != nil {
			n.log.WithError(err).WithField("peer", addr).Warn("write failed")
		}
	}()
}

// persistDump writes the optional inspection dump; failures are logged, not
// fatal, since this output is never read back for recovery.
func (n *ValidatorNode) persistDump() {
	dir := n.cfg.PersistDir
	if dir == "" {
		dir = fmt.Sprintf("Node_%s", n.selfAddr)
	}
	if err := n.Log.DumpJSON(dir, n.cfg.PersistGzip); err != nil {
		n.log.WithError(err).Warn("persist dump failed")
	}
}
