package storage

import (
	"context"
	"strings"
	"time"

	"clipstream/internal/apperr"
	"clipstream/internal/auth"
	"clipstream/internal/models"
)

// CreateAccountParams captures the attributes set when registering.
type CreateAccountParams struct {
	Handle      string
	Email       string
	DisplayName string
	Password    string
	AvatarID    string
	AvatarURL   string
	CoverID     string
	CoverURL    string
}

// AccountProfileUpdate mutates profile fields. Nil fields are left unchanged.
type AccountProfileUpdate struct {
	DisplayName *string
	Email       *string
}

// AccountMediaUpdate replaces avatar or cover references.
type AccountMediaUpdate struct {
	AvatarID  *string
	AvatarURL *string
	CoverID   *string
	CoverURL  *string
}

// CreateAccount registers a new account. Handle and email must be unique,
// compared case-insensitively.
func (s *Storage) CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error) {
	const op = "storage.CreateAccount"
	if err := checkContext(ctx, op); err != nil {
		return models.Account{}, err
	}
	handle := strings.ToLower(strings.TrimSpace(params.Handle))
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if handle == "" {
		return models.Account{}, apperr.Validation(op, "handle is required")
	}
	if email == "" {
		return models.Account{}, apperr.Validation(op, "email is required")
	}
	if len(params.Password) < 8 {
		return models.Account{}, apperr.Validation(op, "password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return models.Account{}, err
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName = handle
	}

	var account models.Account
	err = s.mutate(op, func(data *dataset) error {
		for _, existing := range data.Accounts {
			if strings.EqualFold(existing.Handle, handle) {
				return apperr.Conflict(op, "handle already taken")
			}
			if strings.EqualFold(existing.Email, email) {
				return apperr.Conflict(op, "email already registered")
			}
		}
		now := s.now().UTC()
		account = models.Account{
			ID:           s.newID(),
			Handle:       handle,
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: hash,
			AvatarID:     params.AvatarID,
			AvatarURL:    params.AvatarURL,
			CoverID:      params.CoverID,
			CoverURL:     params.CoverURL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		data.Accounts[account.ID] = account
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// GetAccount fetches an account by id.
func (s *Storage) GetAccount(ctx context.Context, id string) (models.Account, bool, error) {
	if err := checkContext(ctx, "storage.GetAccount"); err != nil {
		return models.Account{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.data.Accounts[id]
	return account, ok, nil
}

// GetAccountByHandle fetches an account by its unique handle.
func (s *Storage) GetAccountByHandle(ctx context.Context, handle string) (models.Account, bool, error) {
	if err := checkContext(ctx, "storage.GetAccountByHandle"); err != nil {
		return models.Account{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.data.Accounts {
		if strings.EqualFold(account.Handle, handle) {
			return account, true, nil
		}
	}
	return models.Account{}, false, nil
}

// FindAccountByIdentifier resolves an account by handle or email.
func (s *Storage) FindAccountByIdentifier(ctx context.Context, identifier string) (models.Account, bool, error) {
	if err := checkContext(ctx, "storage.FindAccountByIdentifier"); err != nil {
		return models.Account{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.data.Accounts {
		if strings.EqualFold(account.Handle, identifier) || strings.EqualFold(account.Email, identifier) {
			return account, true, nil
		}
	}
	return models.Account{}, false, nil
}

// UpdateAccountProfile mutates display name and email.
func (s *Storage) UpdateAccountProfile(ctx context.Context, id string, update AccountProfileUpdate) (models.Account, error) {
	const op = "storage.UpdateAccountProfile"
	if err := checkContext(ctx, op); err != nil {
		return models.Account{}, err
	}
	var account models.Account
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Accounts[id]
		if !ok {
			return apperr.NotFound(op, "account not found")
		}
		if update.DisplayName != nil {
			trimmed := strings.TrimSpace(*update.DisplayName)
			if trimmed == "" {
				return apperr.Validation(op, "display name cannot be empty")
			}
			current.DisplayName = trimmed
		}
		if update.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*update.Email))
			if email == "" {
				return apperr.Validation(op, "email cannot be empty")
			}
			for otherID, other := range data.Accounts {
				if otherID != id && strings.EqualFold(other.Email, email) {
					return apperr.Conflict(op, "email already registered")
				}
			}
			current.Email = email
		}
		current.UpdatedAt = s.now().UTC()
		data.Accounts[id] = current
		account = current
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// UpdateAccountMedia replaces avatar or cover references.
func (s *Storage) UpdateAccountMedia(ctx context.Context, id string, update AccountMediaUpdate) (models.Account, error) {
	const op = "storage.UpdateAccountMedia"
	if err := checkContext(ctx, op); err != nil {
		return models.Account{}, err
	}
	var account models.Account
	err := s.mutate(op, func(data *dataset) error {
		current, ok := data.Accounts[id]
		if !ok {
			return apperr.NotFound(op, "account not found")
		}
		if update.AvatarID != nil {
			current.AvatarID = *update.AvatarID
		}
		if update.AvatarURL != nil {
			current.AvatarURL = *update.AvatarURL
		}
		if update.CoverID != nil {
			current.CoverID = *update.CoverID
		}
		if update.CoverURL != nil {
			current.CoverURL = *update.CoverURL
		}
		current.UpdatedAt = s.now().UTC()
		data.Accounts[id] = current
		account = current
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// ChangeAccountPassword verifies the current secret and replaces the hash.
func (s *Storage) ChangeAccountPassword(ctx context.Context, id, current, next string) error {
	const op = "storage.ChangeAccountPassword"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	if len(next) < 8 {
		return apperr.Validation(op, "password must be at least 8 characters")
	}
	account, ok, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(op, "account not found")
	}
	match, err := auth.VerifyPassword(account.PasswordHash, current)
	if err != nil {
		return err
	}
	if !match {
		return apperr.Unauthorized(op, "current password is incorrect")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		record, ok := data.Accounts[id]
		if !ok {
			return apperr.NotFound(op, "account not found")
		}
		record.PasswordHash = hash
		record.UpdatedAt = s.now().UTC()
		data.Accounts[id] = record
		return nil
	})
}

// Set stores the refresh token digest for the account, replacing any prior
// session. Implements auth.RefreshTokenStore.
func (s *Storage) Set(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	const op = "storage.RefreshSet"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		if _, ok := data.Accounts[accountID]; !ok {
			return apperr.NotFound(op, "account not found")
		}
		data.Refresh[accountID] = refreshState{TokenHash: tokenHash, ExpiresAt: expiresAt.UTC()}
		return nil
	})
}

// Get returns the stored refresh digest; expired state reports as absent.
func (s *Storage) Get(ctx context.Context, accountID string) (string, bool, error) {
	if err := checkContext(ctx, "storage.RefreshGet"); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.data.Refresh[accountID]
	if !ok || s.now().After(state.ExpiresAt) {
		return "", false, nil
	}
	return state.TokenHash, true, nil
}

// Rotate swaps the stored refresh digest only when it still equals
// currentHash. The compare and swap run inside one dataset mutation, so two
// concurrent refresh calls cannot both succeed.
func (s *Storage) Rotate(ctx context.Context, accountID, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	const op = "storage.RefreshRotate"
	if err := checkContext(ctx, op); err != nil {
		return false, err
	}
	swapped := false
	err := s.mutate(op, func(data *dataset) error {
		state, ok := data.Refresh[accountID]
		if !ok || state.TokenHash != currentHash || s.now().After(state.ExpiresAt) {
			return nil
		}
		data.Refresh[accountID] = refreshState{TokenHash: nextHash, ExpiresAt: expiresAt.UTC()}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Clear drops the account's refresh state. Clearing an absent session is not
// an error.
func (s *Storage) Clear(ctx context.Context, accountID string) error {
	const op = "storage.RefreshClear"
	if err := checkContext(ctx, op); err != nil {
		return err
	}
	return s.mutate(op, func(data *dataset) error {
		delete(data.Refresh, accountID)
		return nil
	})
}
