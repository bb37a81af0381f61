package core

// validator.go implements the per-request independent decision rules. Each
// Decide* function is a pure, side-effect-free predicate; the Apply*
// counterparts mutate state and are only invoked by the node after the
// consensus engine returns a YES verdict. Every failure mode recovers to a
// boolean NO rather than a propagated error; validation errors never
// terminate the node.

import "strconv"

// FaucetAmount is the fixed credit granted by a Faucet request.
const FaucetAmount uint64 = 100

// DecideAccountCreation reports YES iff the account doesn't already exist
// and the key hash decodes to 32 bytes.
func DecideAccountCreation(accounts *AccountIndex, pkHex, keyHashHex string) bool {
	if accounts.Exists(pkHex) {
		return false
	}
	return isHex32Bytes(keyHashHex)
}

// DecideTransaction reports YES iff every one of the following holds:
// sender and recipient accounts exist, the signature verifies over the
// transaction digest, the signature hasn't already been used, the sender's
// balance covers the amount, the nonce matches the sender's current nonce,
// and crediting the recipient would not overflow.
func DecideTransaction(accounts *AccountIndex, replay *ReplayGuard, senderPKHex, sigHex, recipientPKHex, amountStr string, nonce uint64) bool {
	if !accounts.Exists(senderPKHex) || !accounts.Exists(recipientPKHex) {
		return false
	}

	senderPub, err := DecodePublicKey(senderPKHex)
	if err != nil {
		return false
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return false
	}
	digest := TxMessageDigest(senderPKHex, recipientPKHex, amount, nonce)
	if ok, err := VerifyHex(PublicKeyHex(senderPub), digest, sigHex); err != nil || !ok {
		return false
	}

	if replay.Has(senderPKHex, sigHex) {
		return false
	}

	balance, err := accounts.GetBalance(senderPKHex)
	if err != nil || balance < amount {
		return false
	}

	currentNonce, err := accounts.GetNonce(senderPKHex)
	if err != nil || nonce != currentNonce {
		return false
	}

	overflow, err := accounts.WouldOverflow(recipientPKHex, amount)
	if err != nil || overflow {
		return false
	}

	return true
}

// DecideFaucet reports YES iff the account exists and crediting
// FaucetAmount would not overflow.
func DecideFaucet(accounts *AccountIndex, pkHex string) bool {
	if !accounts.Exists(pkHex) {
		return false
	}
	overflow, err := accounts.WouldOverflow(pkHex, FaucetAmount)
	if err != nil || overflow {
		return false
	}
	return true
}

// ApplyAccountCreation inserts the new zero-balance account and returns the
// NewAccount block to append.
func ApplyAccountCreation(accounts *AccountIndex, pkHex, keyHashHex string, now int64) (Block, error) {
	if err := accounts.Insert(pkHex, keyHashHex); err != nil {
		return Block{}, err
	}
	return NewAccountBlock(pkHex, now), nil
}

// ApplyTransaction debits the sender, credits the recipient, bumps the
// sender's nonce, records the signature against replay, and returns the
// Transaction block carrying post-application balances.
func ApplyTransaction(accounts *AccountIndex, replay *ReplayGuard, senderPKHex, sigHex, recipientPKHex, amountStr string, now int64) (Block, error) {
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return Block{}, ErrMalformedEnvelope
	}
	nonceUsed, err := accounts.GetNonce(senderPKHex)
	if err != nil {
		return Block{}, err
	}
	if err := accounts.Debit(senderPKHex, amount); err != nil {
		return Block{}, err
	}
	if err := accounts.Credit(recipientPKHex, amount); err != nil {
		return Block{}, err
	}
	if err := accounts.BumpNonce(senderPKHex); err != nil {
		return Block{}, err
	}
	replay.Record(senderPKHex, sigHex)

	senderBalance, err := accounts.GetBalance(senderPKHex)
	if err != nil {
		return Block{}, err
	}
	recipientBalance, err := accounts.GetBalance(recipientPKHex)
	if err != nil {
		return Block{}, err
	}
	return NewTransactionBlock(senderPKHex, senderBalance, recipientPKHex, recipientBalance, amount, nonceUsed, now), nil
}

// ApplyFaucet credits FaucetAmount to pk and returns the Faucet block.
func ApplyFaucet(accounts *AccountIndex, pkHex string, now int64) (Block, error) {
	if err := accounts.Credit(pkHex, FaucetAmount); err != nil {
		return Block{}, err
	}
	balance, err := accounts.GetBalance(pkHex)
	if err != nil {
		return Block{}, err
	}
	return NewFaucetBlock(pkHex, balance, now), nil
}

func isHex32Bytes(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
