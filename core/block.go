package core

// block.go implements the append-only block log's element type. Rather
// than a type per kind, a Block is a single tagged struct with a Kind
// discriminator and per-kind fields, following the flat-struct shape this
// package uses for its other wire types.

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// BlockKind discriminates the block variant.
type BlockKind string

const (
	BlockGenesis     BlockKind = "Genesis"
	BlockTransaction BlockKind = "Transaction"
	BlockNewAccount  BlockKind = "NewAccount"
	BlockFaucet      BlockKind = "Faucet"
)

// Block is the append-only log element. Fields are populated according to
// Kind; balances and nonces are stored post-application so the log is
// self-verifying against the account index.
type Block struct {
	Kind                   BlockKind `json:"kind"`
	Time                   int64     `json:"time"`
	SenderPK               string    `json:"sender_pk,omitempty"`
	SenderBalanceAfter     uint64    `json:"sender_balance_after,omitempty"`
	RecipientPK            string    `json:"recipient_pk,omitempty"`
	RecipientBalanceAfter  uint64    `json:"recipient_balance_after,omitempty"`
	Amount                 uint64    `json:"amount,omitempty"`
	SenderNonce            uint64    `json:"sender_nonce,omitempty"`
	PK                     string    `json:"pk,omitempty"`
	BalanceAfter           uint64    `json:"balance_after,omitempty"`
	Hash                   string    `json:"hash"`
}

// NewGenesisBlock returns the block that always occupies index 0 of the log.
func NewGenesisBlock(now int64) Block {
	b := Block{Kind: BlockGenesis, Time: now}
	b.Hash = hashBlock(b)
	return b
}

// NewTransactionBlock builds a Transaction block carrying post-application
// state: the sender's and recipient's balances after the transfer and the
// sender's nonce as used (the value the transaction was validated against,
// before the bump).
func NewTransactionBlock(senderPK string, senderBalanceAfter uint64, recipientPK string, recipientBalanceAfter uint64, amount uint64, senderNonce uint64, now int64) Block {
	b := Block{
		Kind:                  BlockTransaction,
		Time:                  now,
		SenderPK:              senderPK,
		SenderBalanceAfter:    senderBalanceAfter,
		RecipientPK:           recipientPK,
		RecipientBalanceAfter: recipientBalanceAfter,
		Amount:                amount,
		SenderNonce:           senderNonce,
	}
	b.Hash = hashBlock(b)
	return b
}

// NewAccountBlock builds a NewAccount block. balance_after is always 0.
func NewAccountBlock(pk string, now int64) Block {
	b := Block{Kind: BlockNewAccount, Time: now, PK: pk}
	b.Hash = hashBlock(b)
	return b
}

// NewFaucetBlock builds a Faucet block carrying the recipient's
// post-application balance.
func NewFaucetBlock(pk string, balanceAfter uint64, now int64) Block {
	b := Block{Kind: BlockFaucet, Time: now, PK: pk, BalanceAfter: balanceAfter}
	b.Hash = hashBlock(b)
	return b
}

// VerifyHash reports whether the block's stored hash matches a
// recomputation from its other fields.
func (b Block) VerifyHash() bool {
	return b.Hash == hashBlock(b)
}

// hashBlock computes the canonical SHA-256 digest of a block: the
// concatenation of every field except Hash, in declared order, with
// fixed-width big-endian integers for balances/amounts/nonce and
// decimal-string bytes for the timestamp. The Hash field itself is always
// treated as zeroed.
func hashBlock(b Block) string {
	var buf []byte
	buf = append(buf, byte(len(b.Kind)))
	buf = append(buf, b.Kind...)
	buf = append(buf, strconv.FormatInt(b.Time, 10)...)
	buf = append(buf, b.SenderPK...)
	buf = appendU64(buf, b.SenderBalanceAfter)
	buf = append(buf, b.RecipientPK...)
	buf = appendU64(buf, b.RecipientBalanceAfter)
	buf = appendU64(buf, b.Amount)
	buf = appendU64(buf, b.SenderNonce)
	buf = append(buf, b.PK...)
	buf = appendU64(buf, b.BalanceAfter)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func appendU64(buf []byte, v uint64) []byte {
	var w [8]byte
	binary.BigEndian.PutUint64(w[:], v)
	return append(buf, w[:]...)
}
