/**
 * @description
 * This file contains the contract transitions of the campaign ledger: Create,
 * Donate, and Withdraw, plus a read-only record lookup. The Service struct holds
 * no state of its own; every transition runs inside a single Ledger.Invoke
 * envelope, so either all of its effects commit or none do, and concurrent
 * transitions against the same campaign are serialized by the ledger.
 *
 * Key invariants enforced here:
 * - Only the admin captured at creation can withdraw (ErrUnauthorized).
 * - A withdrawal can never drain the campaign below the minimum reserve for its
 *   fixed byte size (ErrInsufficientFunds).
 * - AmountDonated only ever increases; withdrawals leave it untouched.
 *
 * @dependencies
 * - github.com/google/uuid: Invocation audit ids.
 * - internal/domain, internal/store: Domain models and the ledger collaborator.
 * - pkg/rabbitmq: Campaign event publishing after successful envelopes.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumenfund/campaign-service/internal/domain"
	"github.com/lumenfund/campaign-service/internal/store"
	"github.com/lumenfund/campaign-service/pkg/rabbitmq"
)

// Service provides the campaign ledger's entry points.
type Service struct {
	ledger store.Ledger
	events rabbitmq.Publisher

	limiter             RateLimiter
	donationLimitPerMin int
	lookupLimitPerMin   int
}

// NewService creates a new campaign service instance.
func NewService(ledger store.Ledger, events rabbitmq.Publisher) *Service {
	return &Service{ledger: ledger, events: events}
}

// ConfigureRateLimits sets per-identity request budgets. Zero disables a limit.
func (s *Service) ConfigureRateLimits(donationPerMinute, lookupPerMinute int) {
	s.donationLimitPerMin = donationPerMinute
	s.lookupLimitPerMin = lookupPerMinute
}

// SetRateLimiter installs the distributed limiter backend.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// CreateCampaign allocates and initializes a campaign record for the requester.
// The record address is derived from the requester's identity, so a second call
// for the same requester fails with store.ErrAccountExists. The requester funds
// the allocation to exactly the minimum reserve.
func (s *Service) CreateCampaign(ctx context.Context, requester domain.Identity, name, description string) (*domain.Campaign, domain.Address, error) {
	campaign := &domain.Campaign{
		Name:          name,
		Description:   description,
		AmountDonated: 0,
		Admin:         requester,
	}
	addr := domain.DeriveCampaignAddress(requester)

	data, err := domain.EncodeCampaign(campaign)
	if err != nil {
		return nil, addr, err
	}

	reserve := s.ledger.MinimumReserve(domain.CampaignAccountSize)
	writable := []domain.Address{addr, requester.SystemAddress()}
	err = s.ledger.Invoke(ctx, writable, func(inv store.Invocation) error {
		if err := inv.Allocate(addr, domain.CampaignAccountSize, requester, reserve); err != nil {
			return err
		}
		if err := inv.Store(addr, data); err != nil {
			return err
		}
		return inv.RecordInvocation(domain.InvocationRecord{
			ID:         uuid.New(),
			EntryPoint: "create",
			FeePayer:   requester,
			Campaign:   addr,
			Amount:     reserve,
		})
	})
	if err != nil {
		return nil, addr, err
	}

	log.Printf("level=info component=ledger entry_point=create outcome=success campaign=%s admin=%s reserve=%d", addr, requester, reserve)
	s.publishEvent(ctx, "campaign.created", addr, requester, reserve)

	return campaign, addr, nil
}

// Donate moves amount lamports from the donor into the campaign account and
// increments the lifetime donation counter by the same amount. Any signer may
// donate to any existing campaign; a donor shortfall surfaces as the store's
// generic ErrInsufficientFunds. Transfer and counter update share one envelope.
func (s *Service) Donate(ctx context.Context, donor domain.Identity, campaignAddr domain.Address, amount uint64) (*domain.Campaign, error) {
	if err := s.consumeRateLimit(ctx, "donate", donor.String(), s.donationLimitPerMin); err != nil {
		return nil, err
	}

	var campaign *domain.Campaign
	writable := []domain.Address{campaignAddr, donor.SystemAddress()}
	err := s.ledger.Invoke(ctx, writable, func(inv store.Invocation) error {
		acct, err := inv.Load(campaignAddr)
		if err != nil {
			return err
		}
		campaign, err = domain.DecodeCampaign(acct.Data)
		if err != nil {
			return err
		}

		if err := inv.Transfer(donor.SystemAddress(), campaignAddr, amount); err != nil {
			return err
		}

		campaign.AmountDonated += amount
		data, err := domain.EncodeCampaign(campaign)
		if err != nil {
			return err
		}
		if err := inv.Store(campaignAddr, data); err != nil {
			return err
		}
		return inv.RecordInvocation(domain.InvocationRecord{
			ID:         uuid.New(),
			EntryPoint: "donate",
			FeePayer:   donor,
			Campaign:   campaignAddr,
			Amount:     amount,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger entry_point=donate outcome=success campaign=%s donor=%s amount=%d total_donated=%d", campaignAddr, donor, amount, campaign.AmountDonated)
	s.publishEvent(ctx, "campaign.donated", campaignAddr, donor, amount)

	return campaign, nil
}

// Withdraw moves amount lamports from the campaign to the requester. Only the
// admin captured at creation may withdraw, and the campaign balance can never
// drop below the minimum reserve for its fixed byte size. The lifetime donation
// counter is left unchanged.
func (s *Service) Withdraw(ctx context.Context, requester domain.Identity, campaignAddr domain.Address, amount uint64) error {
	reserve := s.ledger.MinimumReserve(domain.CampaignAccountSize)

	writable := []domain.Address{campaignAddr, requester.SystemAddress()}
	err := s.ledger.Invoke(ctx, writable, func(inv store.Invocation) error {
		acct, err := inv.Load(campaignAddr)
		if err != nil {
			return err
		}
		campaign, err := domain.DecodeCampaign(acct.Data)
		if err != nil {
			return err
		}

		// Precondition order matters: identity first, then funds.
		if campaign.Admin != requester {
			return store.ErrUnauthorized
		}
		if acct.Lamports < reserve || acct.Lamports-reserve < amount {
			return store.ErrInsufficientFunds
		}

		if err := inv.Transfer(campaignAddr, requester.SystemAddress(), amount); err != nil {
			return err
		}
		return inv.RecordInvocation(domain.InvocationRecord{
			ID:         uuid.New(),
			EntryPoint: "withdraw",
			FeePayer:   requester,
			Campaign:   campaignAddr,
			Amount:     amount,
		})
	})
	if err != nil {
		return err
	}

	// Withdrawal success line is part of the entry point's observable behavior.
	log.Printf("level=info component=ledger entry_point=withdraw outcome=success campaign=%s admin=%s amount=%d", campaignAddr, requester, amount)
	s.publishEvent(ctx, "campaign.withdrawn", campaignAddr, requester, amount)

	return nil
}

// GetCampaign decodes the record at the given derived address and reports its
// current account balance alongside the lifetime donation counter.
func (s *Service) GetCampaign(ctx context.Context, campaignAddr domain.Address, subject string) (*domain.Campaign, uint64, error) {
	if err := s.consumeRateLimit(ctx, "lookup", subject, s.lookupLimitPerMin); err != nil {
		return nil, 0, err
	}

	var campaign *domain.Campaign
	var balance uint64
	err := s.ledger.Invoke(ctx, nil, func(inv store.Invocation) error {
		acct, err := inv.Load(campaignAddr)
		if err != nil {
			return err
		}
		campaign, err = domain.DecodeCampaign(acct.Data)
		if err != nil {
			return err
		}
		balance = acct.Lamports
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return campaign, balance, nil
}

func (s *Service) consumeRateLimit(ctx context.Context, scope, subject string, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, limit, time.Minute)
	if err != nil {
		// Best-effort limiter; a Redis outage must not fail ledger invocations.
		log.Printf("level=warn component=ledger scope=%s msg=\"rate limiter unavailable\" err=%v", scope, err)
		return nil
	}
	if count > limit {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, campaign domain.Address, actor domain.Identity, amount uint64) {
	if s.events == nil {
		return
	}
	event := rabbitmq.CampaignEvent{
		ID:        uuid.New(),
		Campaign:  campaign.String(),
		Actor:     actor.String(),
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	if err := s.events.PublishCampaignEvent(ctx, routingKey, event); err != nil {
		// Events are a diagnostic side channel; a broker failure never fails the invocation.
		log.Printf("level=warn component=ledger msg=\"event publish failed\" routing_key=%s campaign=%s err=%v", routingKey, campaign, err)
	}
}
