package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// DefaultInviteTTL is how long an invite stays acceptable when no TTL is given.
const DefaultInviteTTL = 7 * 24 * time.Hour

// CollaboratorService runs the invite, accept and revoke workflow.
type CollaboratorService struct {
	storage *storage.SQLiteRepository
	access  *AccessService
	events  ChangePublisher
	now     func() time.Time
}

func NewCollaboratorService(store *storage.SQLiteRepository, access *AccessService, events ChangePublisher) *CollaboratorService {
	return &CollaboratorService{
		storage: store,
		access:  access,
		events:  events,
		now:     time.Now,
	}
}

// Invite creates a pending invite and queues the invitation email.
func (s *CollaboratorService) Invite(ctx context.Context, ownerID int64, email string, perm core.Permission, ttl time.Duration) (core.Invite, error) {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	inv := core.Invite{
		OwnerID:    ownerID,
		Email:      core.NormalizeEmail(email),
		Permission: perm,
		Token:      uuid.NewString(),
		ExpiresAt:  s.now().UTC().Add(ttl),
	}
	if err := inv.Validate(); err != nil {
		return core.Invite{}, err
	}

	owner, err := s.storage.GetUser(ctx, ownerID)
	if err != nil {
		return core.Invite{}, fmt.Errorf("load owner: %w", err)
	}
	if owner.Email == inv.Email {
		return core.Invite{}, fmt.Errorf("%w: cannot invite yourself", core.ErrInvalidEmail)
	}

	created, err := s.storage.CreateInvite(ctx, inv)
	if err != nil {
		return core.Invite{}, fmt.Errorf("save invite: %w", err)
	}

	subject := fmt.Sprintf("%s shared a ledger with you", displayName(owner))
	body := fmt.Sprintf("%s invited you to their ledger with %s permission.\n\nInvite token: %s\nThis invite expires on %s.\n",
		displayName(owner), created.Permission, created.Token, created.ExpiresAt.Format(time.RFC1123))
	if _, err := s.storage.EnqueueNotification(ctx, created.Email, subject, body); err != nil {
		slog.ErrorContext(ctx, "Failed to queue invite email", "invite_id", created.ID, "error", err)
	}

	slog.InfoContext(ctx, "Collaborator invited",
		"owner_id", ownerID,
		"invite_id", created.ID,
		"permission", created.Permission,
		"expires_at", created.ExpiresAt)
	publishChange(ctx, s.events, ownerID, core.EntityInvite, core.ActionCreated, created.ID)
	return created, nil
}

// Accept binds a pending, unexpired invite to the calling user. The caller's
// email must be the one the invite was sent to.
func (s *CollaboratorService) Accept(ctx context.Context, user core.User, token string) (core.Invite, error) {
	inv, err := s.storage.GetInviteByToken(ctx, token)
	if err != nil {
		return core.Invite{}, err
	}
	now := s.now().UTC()
	if err := inv.Usable(now); err != nil {
		return core.Invite{}, err
	}
	if core.NormalizeEmail(user.Email) != inv.Email {
		return core.Invite{}, core.ErrInviteEmailMismatch
	}
	if user.ID == inv.OwnerID {
		return core.Invite{}, fmt.Errorf("%w: cannot accept your own invite", core.ErrConflict)
	}

	if err := s.storage.AcceptInvite(ctx, inv.ID, user.ID, now); err != nil {
		return core.Invite{}, err
	}
	s.access.Evict(inv.OwnerID, user.ID)

	inv.State = core.InviteAccepted
	inv.AcceptedBy = &user.ID
	inv.AcceptedAt = &now

	if owner, err := s.storage.GetUser(ctx, inv.OwnerID); err == nil {
		subject := fmt.Sprintf("%s accepted your invite", displayName(user))
		body := fmt.Sprintf("%s now has %s access to your ledger.\n", displayName(user), inv.Permission)
		if _, err := s.storage.EnqueueNotification(ctx, owner.Email, subject, body); err != nil {
			slog.ErrorContext(ctx, "Failed to queue acceptance email", "invite_id", inv.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Invite accepted", "owner_id", inv.OwnerID, "invite_id", inv.ID, "user_id", user.ID)
	publishChange(ctx, s.events, inv.OwnerID, core.EntityInvite, core.ActionUpdated, inv.ID)
	return inv, nil
}

// Revoke ends a collaboration immediately. Past transactions keep their
// created_by attribution.
func (s *CollaboratorService) Revoke(ctx context.Context, ownerID, inviteID int64) (core.Invite, error) {
	inv, err := s.storage.RevokeInvite(ctx, ownerID, inviteID)
	if err != nil {
		return core.Invite{}, err
	}
	if inv.AcceptedBy != nil {
		s.access.Evict(ownerID, *inv.AcceptedBy)
	}
	slog.InfoContext(ctx, "Invite revoked", "owner_id", ownerID, "invite_id", inviteID)
	publishChange(ctx, s.events, ownerID, core.EntityInvite, core.ActionUpdated, inviteID)
	return inv, nil
}

// ListActive returns the owner's current collaborators.
func (s *CollaboratorService) ListActive(ctx context.Context, ownerID int64) ([]core.Invite, error) {
	return s.storage.ListInvites(ctx, ownerID, core.InviteAccepted)
}

// ListInvites returns every invite the owner sent, in any state.
func (s *CollaboratorService) ListInvites(ctx context.Context, ownerID int64) ([]core.Invite, error) {
	return s.storage.ListInvites(ctx, ownerID, "")
}

// ListShared returns the ledgers other users opened to userID.
func (s *CollaboratorService) ListShared(ctx context.Context, userID int64) ([]core.SharedLedger, error) {
	return s.storage.ListSharedLedgers(ctx, userID)
}

func displayName(u core.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
