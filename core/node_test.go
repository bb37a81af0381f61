package core

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"miniledger/internal/testutil"
)

// newTestNode starts a single-node validator (registry containing only
// itself) so consensus rounds and snapshot adoption resolve immediately
// without any peer traffic, letting these tests drive the request handlers
// directly and assert on committed state.
func newTestNode(t *testing.T) *ValidatorNode {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	registry := networkConfigFile{Nodes: []PeerInfo{{ID: "self", Address: "127.0.0.1", Port: uint16(port)}}}
	data, err := json.Marshal(registry)
	if err != nil {
		t.Fatalf("marshal registry: %v", err)
	}
	if err := sb.WriteFile("accepted_ports.json", data, 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	cfg := NodeConfig{
		RegistryPath:     sb.Path("accepted_ports.json"),
		HeartbeatPeriod:  time.Hour,
		HeartbeatTimeout: 200 * time.Millisecond,
		SnapshotDelay:    time.Hour,
		IntegrationTest:  true,
		PersistDir:       sb.Path("persist"),
	}
	node, err := NewValidatorNode(cfg, log)
	if err != nil {
		t.Fatalf("NewValidatorNode: %v", err)
	}
	if err := node.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(node.Stop)
	return node
}

// createTestAccount generates a fresh keypair, submits the AccountCreation
// request, and returns the keypair alongside the wire-form public key and
// key hash so the caller can sign follow-up Transaction requests.
func createTestAccount(t *testing.T, node *ValidatorNode) (*KeyPair, string, string) {
	t.Helper()
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	pkHex := PublicKeyHex(kp.Public)
	keyHash := HashPubKey(kp.Public)
	keyHashHex := hex.EncodeToString(keyHash[:])

	msg := AccountCreationMsg{Action: ActionAccountCreation, PublicKey: pkHex, PublicKeyHash: keyHashHex}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal AccountCreation: %v", err)
	}
	node.handleAccountCreation(raw)
	if !node.Accounts.Exists(pkHex) {
		t.Fatalf("account %s was not created", pkHex)
	}
	return kp, pkHex, keyHashHex
}

func buildTransactionRaw(t *testing.T, kp *KeyPair, senderPK, recipientPK, amount string, nonce uint64) []byte {
	t.Helper()
	amt, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	digest := TxMessageDigest(senderPK, recipientPK, amt, nonce)
	sigHex, err := SignHex(kp.Private, digest)
	if err != nil {
		t.Fatalf("SignHex: %v", err)
	}
	msg := TransactionMsg{
		Action:             ActionTransaction,
		SenderPublicKey:    senderPK,
		Signature:          sigHex,
		RecipientPublicKey: recipientPK,
		Amount:             amount,
		Nonce:              nonce,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal Transaction: %v", err)
	}
	return raw
}

func TestFreshNodeEmitsGenesis(t *testing.T) {
	node := newTestNode(t)
	if node.Log.Len() != 1 {
		t.Fatalf("expected genesis-only log, got %d blocks", node.Log.Len())
	}
	if node.Log.Snapshot()[0].Kind != BlockGenesis {
		t.Fatalf("expected first block to be Genesis")
	}
	if node.SelfAddr() == "" {
		t.Fatalf("expected a bound self address")
	}
}

func TestAccountCreationCommitsBlock(t *testing.T) {
	node := newTestNode(t)
	_, pkHex, _ := createTestAccount(t, node)

	if node.Log.Len() != 2 {
		t.Fatalf("expected genesis + 1 NewAccount block, got %d", node.Log.Len())
	}
	bal, err := node.Accounts.GetBalance(pkHex)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("expected zero starting balance, got %d", bal)
	}
}

func TestFaucetThenTransferSucceeds(t *testing.T) {
	node := newTestNode(t)
	senderKP, senderPK, _ := createTestAccount(t, node)
	_, recipientPK, _ := createTestAccount(t, node)

	faucetMsg := FaucetMsg{Action: ActionFaucet, PublicKey: senderPK}
	raw, _ := json.Marshal(faucetMsg)
	node.handleFaucet(raw)

	bal, err := node.Accounts.GetBalance(senderPK)
	if err != nil || bal != FaucetAmount {
		t.Fatalf("expected sender balance %d after faucet, got %d (err %v)", FaucetAmount, bal, err)
	}

	raw = buildTransactionRaw(t, senderKP, senderPK, recipientPK, "40", 0)
	node.handleTransaction(raw)

	senderBal, _ := node.Accounts.GetBalance(senderPK)
	recipientBal, _ := node.Accounts.GetBalance(recipientPK)
	if senderBal != FaucetAmount-40 {
		t.Fatalf("expected sender balance %d after transfer, got %d", FaucetAmount-40, senderBal)
	}
	if recipientBal != 40 {
		t.Fatalf("expected recipient balance 40, got %d", recipientBal)
	}
	nonce, _ := node.Accounts.GetNonce(senderPK)
	if nonce != 1 {
		t.Fatalf("expected sender nonce bumped to 1, got %d", nonce)
	}
}

func TestReplayedTransactionRejected(t *testing.T) {
	node := newTestNode(t)
	kp, senderPK, _ := createTestAccount(t, node)
	_, recipientPK, _ := createTestAccount(t, node)

	faucetMsg := FaucetMsg{Action: ActionFaucet, PublicKey: senderPK}
	raw, _ := json.Marshal(faucetMsg)
	node.handleFaucet(raw)

	raw = buildTransactionRaw(t, kp, senderPK, recipientPK, "10", 0)
	node.handleTransaction(raw)
	lenAfterFirst := node.Log.Len()

	// Resubmit the exact same signed envelope: nonce has already advanced
	// and the signature is already recorded, so this must be rejected.
	node.handleTransaction(raw)
	if node.Log.Len() != lenAfterFirst {
		t.Fatalf("replayed transaction must not append a new block: before %d, after %d", lenAfterFirst, node.Log.Len())
	}
}

func TestInsufficientFundsRejectedAndMarked(t *testing.T) {
	node := newTestNode(t)
	kp, senderPK, _ := createTestAccount(t, node)
	_, recipientPK, _ := createTestAccount(t, node)

	lenBefore := node.Log.Len()
	raw := buildTransactionRaw(t, kp, senderPK, recipientPK, "5", 0)
	node.handleTransaction(raw)

	if node.Log.Len() != lenBefore {
		t.Fatalf("insufficient-funds transaction must not commit a block")
	}

	markerPath := filepath.Join(node.cfg.PersistDir, "failed_transaction.json")
	if _, err := os.Stat(markerPath); err != nil {
		t.Fatalf("expected integration-test rejection marker at %s: %v", markerPath, err)
	}
}

func TestSnapshotAdoptionKeepsLocalStateWhenNoPeersRespond(t *testing.T) {
	node := newTestNode(t)
	createTestAccount(t, node)
	before := node.Log.Snapshot()

	resp, ok := node.Snapshot.AwaitAndTally(1, 50*time.Millisecond)
	if ok {
		t.Fatalf("expected no tally result with zero responses, got %+v", resp)
	}
	after := node.Log.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("local state must be unchanged when no peer responds")
	}
}
