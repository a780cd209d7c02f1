/**
 * @description
 * This file defines the identity and addressing primitives of the campaign ledger.
 * Every participant is identified by a 32-byte public key, and every account in the
 * ledger lives at a 32-byte address. A participant's spendable balance sits at the
 * account addressed directly by their identity bytes, while campaign records live at
 * addresses derived deterministically from the creator's identity.
 *
 * @notes
 * - Address derivation is a pure function; no index is needed to find a creator's
 *   campaign, and a given creator can hold at most one campaign record.
 */

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IdentityLen is the byte length of identities and addresses.
const IdentityLen = 32

// campaignSeed is the domain tag mixed into campaign address derivation.
const campaignSeed = "campaign"

// Identity is a participant's 32-byte public-key credential.
type Identity [IdentityLen]byte

// Address names an account in the ledger.
type Address [IdentityLen]byte

// SystemAddress returns the address of the identity's own spendable account.
func (id Identity) SystemAddress() Address {
	return Address(id)
}

// String renders the identity as lowercase hex.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// String renders the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ParseIdentity decodes a 64-character hex identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse identity: %w", err)
	}
	if len(raw) != IdentityLen {
		return id, fmt.Errorf("parse identity: expected %d bytes, got %d", IdentityLen, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// ParseAddress decodes a 64-character hex address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("parse address: %w", err)
	}
	if len(raw) != IdentityLen {
		return addr, fmt.Errorf("parse address: expected %d bytes, got %d", IdentityLen, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// DeriveCampaignAddress computes the storage address of a creator's campaign record.
// The address is SHA-256 over the fixed domain tag followed by the creator identity,
// so the mapping is deterministic and collision-free per creator.
func DeriveCampaignAddress(creator Identity) Address {
	h := sha256.New()
	h.Write([]byte(campaignSeed))
	h.Write(creator[:])
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}
