package auth

import (
	"context"
	"log/slog"
	"time"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// AccountDirectory resolves account records for credential checks. The main
// storage package implements it.
type AccountDirectory interface {
	FindAccountByIdentifier(ctx context.Context, identifier string) (models.Account, bool, error)
	GetAccount(ctx context.Context, id string) (models.Account, bool, error)
}

// RefreshTokenStore persists the single active refresh token digest per
// account. Rotate must be a single conditional write: implementations swap
// the stored digest only when it still equals the presented one, so two
// concurrent refresh calls with the same stale token cannot both succeed.
type RefreshTokenStore interface {
	Set(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	Get(ctx context.Context, accountID string) (string, bool, error)
	Rotate(ctx context.Context, accountID, currentHash, nextHash string, expiresAt time.Time) (bool, error)
	Clear(ctx context.Context, accountID string) error
}

// TokenPair is the dual-token result of login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// SessionOption configures a SessionManager instance.
type SessionOption func(*SessionManager)

// WithRefreshStore injects a custom RefreshTokenStore implementation.
func WithRefreshStore(store RefreshTokenStore) SessionOption {
	return func(m *SessionManager) {
		if store != nil {
			m.refresh = store
		}
	}
}

// WithLogger installs the audit logger used for security-significant events.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// SessionManager orchestrates issuance, rotation, and revocation of the token
// pair per account. It defaults to an in-memory refresh store for local
// development when none is supplied.
type SessionManager struct {
	accounts AccountDirectory
	codec    *Codec
	refresh  RefreshTokenStore
	logger   *slog.Logger
}

// NewSessionManager constructs a SessionManager over the provided account
// directory and token codec.
func NewSessionManager(accounts AccountDirectory, codec *Codec, opts ...SessionOption) *SessionManager {
	manager := &SessionManager{
		accounts: accounts,
		codec:    codec,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.refresh == nil {
		manager.refresh = NewMemoryRefreshStore()
	}
	return manager
}

// Login verifies the presented secret and issues a fresh token pair. Issuing
// a new refresh token overwrites any prior one, so each login starts the only
// active session for the account.
func (m *SessionManager) Login(ctx context.Context, identifier, secret string) (models.Account, TokenPair, error) {
	const op = "auth.SessionManager.Login"
	if identifier == "" {
		return models.Account{}, TokenPair{}, apperr.Validation(op, "handle or email is required")
	}
	account, ok, err := m.accounts.FindAccountByIdentifier(ctx, identifier)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if !ok {
		return models.Account{}, TokenPair{}, apperr.NotFound(op, "account not found")
	}
	match, err := VerifyPassword(account.PasswordHash, secret)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if !match {
		return models.Account{}, TokenPair{}, apperr.Unauthorized(op, "invalid credentials")
	}
	pair, err := m.issuePair(identityOf(account))
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if err := m.refresh.Set(ctx, account.ID, hashToken(pair.RefreshToken), pair.RefreshExpiresAt); err != nil {
		return models.Account{}, TokenPair{}, err
	}
	return account, pair, nil
}

// Refresh exchanges a valid, current refresh token for a new pair, rotating
// the stored token. Presenting a superseded token revokes the session and
// fails with the reuse kind so the caller must authenticate again.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (models.Account, TokenPair, error) {
	const op = "auth.SessionManager.Refresh"
	identity, err := m.codec.Verify(presented, TokenKindRefresh)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	account, ok, err := m.accounts.GetAccount(ctx, identity.ID)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if !ok {
		return models.Account{}, TokenPair{}, apperr.NotFound(op, "account not found")
	}
	presentedHash := hashToken(presented)
	stored, active, err := m.refresh.Get(ctx, account.ID)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if !active || stored != presentedHash {
		m.revokeOnReuse(ctx, account.ID)
		return models.Account{}, TokenPair{}, apperr.RefreshReused(op, "refresh token superseded")
	}
	pair, err := m.issuePair(identityOf(account))
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	swapped, err := m.refresh.Rotate(ctx, account.ID, presentedHash, hashToken(pair.RefreshToken), pair.RefreshExpiresAt)
	if err != nil {
		return models.Account{}, TokenPair{}, err
	}
	if !swapped {
		// A concurrent refresh rotated first; this call loses.
		m.revokeOnReuse(ctx, account.ID)
		return models.Account{}, TokenPair{}, apperr.RefreshReused(op, "refresh token superseded")
	}
	return account, pair, nil
}

// Logout clears the stored refresh token. Logging out an account without an
// active session is not an error.
func (m *SessionManager) Logout(ctx context.Context, accountID string) error {
	if accountID == "" {
		return apperr.Validation("auth.SessionManager.Logout", "account id is required")
	}
	return m.refresh.Clear(ctx, accountID)
}

// Authenticate verifies a presented access token and returns the identity it
// encodes. Verification is stateless: access tokens are short-lived and the
// account store is not consulted.
func (m *SessionManager) Authenticate(token string) (Identity, error) {
	return m.codec.Verify(token, TokenKindAccess)
}

func (m *SessionManager) issuePair(identity Identity) (TokenPair, error) {
	access, accessExpiry, err := m.codec.Issue(identity, TokenKindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExpiry, err := m.codec.Issue(identity, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (m *SessionManager) revokeOnReuse(ctx context.Context, accountID string) {
	if err := m.refresh.Clear(ctx, accountID); err != nil {
		m.logger.Error("revoke session after refresh reuse", "account_id", accountID, "error", err)
		return
	}
	m.logger.Warn("refresh token reuse detected, session revoked", "account_id", accountID)
}

func identityOf(account models.Account) Identity {
	return Identity{
		ID:          account.ID,
		Handle:      account.Handle,
		DisplayName: account.DisplayName,
	}
}
