package core

// crypto.go implements the node's signature adapter: secp256k1 keypair
// generation, message digesting, and compact ECDSA sign/verify, binding
// decred/dcrd's secp256k1 package to crypto/ecdsa for a fixed-length
// signature check.

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyPair is a generated secp256k1 signing key and its corresponding
// compressed public key.
type KeyPair struct {
	Private *secp256k1.PrivateKey
	Public  *secp256k1.PublicKey
}

// GenerateKeypair creates a fresh secp256k1 keypair.
func GenerateKeypair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoDecode, err)
	}
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// PublicKeyHex renders a public key as the hex string used on the wire.
func PublicKeyHex(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// DecodePublicKey parses a hex-encoded compressed public key.
func DecodePublicKey(hexKey string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoDecode, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoDecode, err)
	}
	return pub, nil
}

// HashPubKey returns the 32-byte SHA-256 digest of a public key's compressed
// encoding; this is the account's key_hash.
func HashPubKey(pub *secp256k1.PublicKey) [32]byte {
	return sha256.Sum256(pub.SerializeCompressed())
}

// TxMessageDigest computes the SHA-256 digest signed for a Transaction
// request: sender-pk hex bytes || recipient-pk hex bytes || amount decimal
// string bytes || 8-byte little-endian nonce, per the wire contract.
func TxMessageDigest(senderPKHex, recipientPKHex string, amount uint64, nonce uint64) [32]byte {
	buf := make([]byte, 0, len(senderPKHex)+len(recipientPKHex)+20+8)
	buf = append(buf, senderPKHex...)
	buf = append(buf, recipientPKHex...)
	buf = append(buf, strconv.FormatUint(amount, 10)...)
	var nonceLE [8]byte
	for i := 0; i < 8; i++ {
		nonceLE[i] = byte(nonce >> (8 * i))
	}
	buf = append(buf, nonceLE[:]...)
	return sha256.Sum256(buf)
}

// Sign produces a compact 64-byte (r||s) ECDSA-secp256k1 signature over msg.
func Sign(priv *secp256k1.PrivateKey, msg [32]byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv.ToECDSA(), msg[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoDecode, err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	return sig, nil
}

// SignHex signs msg and renders the signature as the 128-char hex string
// carried on the wire.
func SignHex(priv *secp256k1.PrivateKey, msg [32]byte) (string, error) {
	sig, err := Sign(priv, msg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a compact 64-byte (r||s) ECDSA-secp256k1 signature.
func Verify(pub *secp256k1.PublicKey, msg [32]byte, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return ecdsa.Verify(pub.ToECDSA(), msg[:], r, s)
}

// VerifyHex decodes a hex-encoded public key and signature and verifies msg.
func VerifyHex(pubHex string, msg [32]byte, sigHex string) (bool, error) {
	pub, err := DecodePublicKey(pubHex)
	if err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCryptoDecode, err)
	}
	if len(sig) != 64 {
		return false, fmt.Errorf("%w: signature must be 64 bytes, got %d", ErrCryptoDecode, len(sig))
	}
	return Verify(pub, msg, sig), nil
}
