/**
 * @description
 * This file defines the Campaign record and its fixed-size serialized layout.
 * A campaign account is allocated once at creation with exactly CampaignAccountSize
 * bytes and is never resized, so the layout uses fixed capacities with length
 * prefixes rather than variable-length encoding.
 *
 * @notes
 * - Layout: 8-byte account tag | u32 len + 100-byte name | u32 len + 500-byte
 *   description | u64 amount donated | 32-byte admin identity. Integers are
 *   little-endian.
 * - AmountDonated is a lifetime donation counter, not a live balance. Withdrawals
 *   never decrement it.
 * - Oversize name/description is not a domain error; encoding fails with the
 *   generic layout error.
 */

package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	accountTagLen = 8

	// NameCapacity and DescriptionCapacity bound the text fields in the
	// serialized record.
	NameCapacity        = 100
	DescriptionCapacity = 500

	// CampaignAccountSize is the fixed byte size of an allocated campaign account.
	CampaignAccountSize = accountTagLen + 4 + NameCapacity + 4 + DescriptionCapacity + 8 + IdentityLen
)

var (
	// ErrLayoutOverflow indicates a field does not fit the fixed record capacity.
	ErrLayoutOverflow = errors.New("record does not fit fixed layout")

	// ErrBadRecord indicates stored bytes do not decode as a campaign record.
	ErrBadRecord = errors.New("malformed campaign record")
)

// campaignAccountTag discriminates campaign records from other account data.
var campaignAccountTag = func() [accountTagLen]byte {
	sum := sha256.Sum256([]byte("account:Campaign"))
	var tag [accountTagLen]byte
	copy(tag[:], sum[:accountTagLen])
	return tag
}()

// Campaign is the persisted entity tracking a single crowdfunding effort.
type Campaign struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	AmountDonated uint64   `json:"amount_donated"`
	Admin         Identity `json:"admin"`
}

// EncodeCampaign serializes the record into the fixed account layout.
func EncodeCampaign(c *Campaign) ([]byte, error) {
	if len(c.Name) > NameCapacity || len(c.Description) > DescriptionCapacity {
		return nil, ErrLayoutOverflow
	}

	buf := make([]byte, CampaignAccountSize)
	off := 0

	copy(buf[off:], campaignAccountTag[:])
	off += accountTagLen

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.Name)))
	off += 4
	copy(buf[off:], c.Name)
	off += NameCapacity

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.Description)))
	off += 4
	copy(buf[off:], c.Description)
	off += DescriptionCapacity

	binary.LittleEndian.PutUint64(buf[off:], c.AmountDonated)
	off += 8

	copy(buf[off:], c.Admin[:])

	return buf, nil
}

// DecodeCampaign deserializes a fixed-layout account blob.
func DecodeCampaign(data []byte) (*Campaign, error) {
	if len(data) != CampaignAccountSize {
		return nil, ErrBadRecord
	}
	if !bytes.Equal(data[:accountTagLen], campaignAccountTag[:]) {
		return nil, ErrBadRecord
	}

	off := accountTagLen

	nameLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if nameLen > NameCapacity {
		return nil, ErrBadRecord
	}
	name := string(data[off : off+int(nameLen)])
	off += NameCapacity

	descLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if descLen > DescriptionCapacity {
		return nil, ErrBadRecord
	}
	desc := string(data[off : off+int(descLen)])
	off += DescriptionCapacity

	c := &Campaign{
		Name:          name,
		Description:   desc,
		AmountDonated: binary.LittleEndian.Uint64(data[off:]),
	}
	off += 8
	copy(c.Admin[:], data[off:])

	return c, nil
}

// InvocationRecord is the audit row written for every successful entry-point
// invocation, inside the same transaction envelope as its state changes.
type InvocationRecord struct {
	ID         uuid.UUID `json:"id"`
	EntryPoint string    `json:"entry_point"` // 'create', 'donate', 'withdraw'
	FeePayer   Identity  `json:"fee_payer"`
	Campaign   Address   `json:"campaign"`
	Amount     uint64    `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
