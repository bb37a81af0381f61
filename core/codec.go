package core

// codec.go implements the tagged wire envelope. The envelope is a generic
// {action, ...} JSON object parsed in two steps: extract the action tag,
// then unmarshal the payload into the action's concrete Go struct. The
// exhaustive match happens once, in the ingress loop's dispatch switch.

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Action tags, exactly as they appear on the wire.
const (
	ActionAccountCreation    = "AccountCreation"
	ActionTransaction        = "Transaction"
	ActionFaucet             = "Faucet"
	ActionConsensusRequest   = "ConsensusRequest"
	ActionConsensusResponse  = "ConsensusResponse"
	ActionHeartBeat          = "HeartBeat"
	ActionPeerLedgerRequest  = "PeerLedgerRequest"
	ActionPeerLedgerResponse = "PeerLedgerResponse"
)

// taggedEnvelope extracts just the discriminator; the rest of the payload is
// re-parsed into the concrete type once the action is known.
type taggedEnvelope struct {
	Action string `json:"action"`
}

// AccountCreationMsg is the wire payload for an AccountCreation request.
type AccountCreationMsg struct {
	Action        string `json:"action"`
	PublicKey     string `json:"public_key"`
	PublicKeyHash string `json:"public_key_hash"`
}

// TransactionMsg is the wire payload for a Transaction request.
type TransactionMsg struct {
	Action             string `json:"action"`
	SenderPublicKey    string `json:"sender_public_key"`
	Signature          string `json:"signature"`
	RecipientPublicKey string `json:"recipient_public_key"`
	Amount             string `json:"amount"`
	Nonce              uint64 `json:"nonce"`
}

// FaucetMsg is the wire payload for a Faucet request.
type FaucetMsg struct {
	Action    string `json:"action"`
	PublicKey string `json:"public_key"`
}

// ConsensusRequestMsg carries the request hash and the response address the
// vote should be sent back to.
type ConsensusRequestMsg struct {
	Action       string   `json:"action"`
	RequestHash  ByteList `json:"request_hash"`
	ResponsePort string   `json:"response_port"`
}

// ConsensusResponseMsg carries a peer's vote on a request hash.
type ConsensusResponseMsg struct {
	Action      string   `json:"action"`
	RequestHash ByteList `json:"request_hash"`
	Decision    bool     `json:"decision"`
}

// ByteList renders as a plain JSON array of byte values ([12,200,...])
// rather than Go's default base-64 string, matching the wire format used
// for request_hash.
type ByteList []byte

// MarshalJSON encodes b as a JSON array of numbers.
func (b ByteList) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes a JSON array of numbers into b.
func (b *ByteList) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// HeartBeatMsg is a liveness beacon.
type HeartBeatMsg struct {
	Action      string `json:"action"`
	PortAddress string `json:"port_address"`
}

// PeerLedgerRequestMsg asks a peer to report its full ledger state.
type PeerLedgerRequestMsg struct {
	Action       string `json:"action"`
	ResponsePort string `json:"response_port"`
}

// PeerLedgerResponseMsg is a peer's full ledger snapshot, used by snapshot
// adoption. Map fields are keyed by hex-encoded public key on the wire, not
// by base-64; CanonicalHash sorts the keys and base-64 encodes them only
// when hashing a response for the vote.
type PeerLedgerResponseMsg struct {
	Action         string              `json:"action"`
	Blockchain     []Block             `json:"blockchain"`
	AccountsVec    []Account           `json:"accounts_vec"`
	AccountsMap    map[string]uint64   `json:"accounts_map"`
	UsedSignatures map[string][]string `json:"used_zk_proofs"`
}

// ParseAction extracts the action tag from a raw envelope without fully
// decoding the payload. Returns ErrMalformedEnvelope on invalid JSON and
// ErrUnknownAction if the tag is absent.
func ParseAction(raw []byte) (string, error) {
	var t taggedEnvelope
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if t.Action == "" {
		return "", ErrUnknownAction
	}
	return t.Action, nil
}

// RequestHash returns the SHA-256 digest of the exact wire bytes received,
// hex-encoded. Two peers receiving byte-identical JSON compute identical
// hashes, which is the consensus engine's per-request key.
func RequestHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// HashHexToBytes converts a hex-encoded request hash to the raw ByteList
// carried on the wire in ConsensusRequest/ConsensusResponse envelopes.
func HashHexToBytes(hexHash string) ByteList {
	raw, _ := hex.DecodeString(hexHash)
	return raw
}

// HashBytesToHex converts a wire ByteList request hash back to the
// hex-encoded string used as the engine's internal map key.
func HashBytesToHex(b ByteList) string {
	return hex.EncodeToString(b)
}
