package api

import (
	"fmt"
	"net/http"
	"time"

	"clipstream/internal/auth"
	"clipstream/internal/media"
	"clipstream/internal/models"
	"clipstream/internal/storage"
)

type registerRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type authResponse struct {
	Account          accountResponse `json:"account"`
	AccessToken      string          `json:"accessToken"`
	RefreshToken     string          `json:"refreshToken"`
	AccessExpiresAt  string          `json:"accessExpiresAt"`
	RefreshExpiresAt string          `json:"refreshExpiresAt"`
}

func newAccountResponse(account models.Account) accountResponse {
	return accountResponse{
		ID:          account.ID,
		Handle:      account.Handle,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		AvatarURL:   account.AvatarURL,
		CoverURL:    account.CoverURL,
		CreatedAt:   account.CreatedAt.Format(time.RFC3339Nano),
	}
}

func newAuthResponse(account models.Account, pair auth.TokenPair) authResponse {
	return authResponse{
		Account:          newAccountResponse(account),
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt.UTC().Format(time.RFC3339Nano),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	account, err := h.Store.CreateAccount(r.Context(), storage.CreateAccountParams{
		Handle:      req.Handle,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	account, pair, err := h.Sessions.Login(r.Context(), account.Handle, req.Password)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusCreated, newAuthResponse(account, pair))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	account, pair, err := h.Sessions.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, newAuthResponse(account, pair))
}

// Refresh rotates the token pair. Presenting a superseded refresh token
// revokes the whole session and clears the cookies, forcing a fresh login.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	token := extractRefreshToken(r, req.RefreshToken)
	if token == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("refresh token is required"))
		return
	}

	account, pair, err := h.Sessions.Refresh(r.Context(), token)
	if err != nil {
		h.ClearSessionCookies(w, r)
		writeAppError(w, h.Logger, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	writeJSON(w, http.StatusOK, newAuthResponse(account, pair))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.Logout(r.Context(), identity.ID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	h.ClearSessionCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the authenticated account.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	account, exists, err := h.Store.GetAccount(r.Context(), identity.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	if !exists {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("account not found"))
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// ChangePassword swaps the account secret and revokes the active session, so
// every device must log in with the new password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Store.ChangeAccountPassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	if err := h.Sessions.Logout(r.Context(), identity.ID); err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	h.ClearSessionCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := h.Store.UpdateAccountProfile(r.Context(), identity.ID, storage.AccountProfileUpdate{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// UpdateAvatar replaces the account avatar from a multipart upload.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateAccountImage(w, r, "avatar")
}

// UpdateCover replaces the channel cover image from a multipart upload.
func (h *Handler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateAccountImage(w, r, "cover")
}

func (h *Handler) updateAccountImage(w http.ResponseWriter, r *http.Request, field string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH")
		return
	}
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	file, header, err := formFile(r, field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	object, err := h.Media.Store(r.Context(), media.Upload{Name: header.Filename, Reader: file})
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}

	var update storage.AccountMediaUpdate
	var previousID string
	account, exists, err := h.Store.GetAccount(r.Context(), identity.ID)
	if err != nil {
		writeAppError(w, h.Logger, err)
		return
	}
	if !exists {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("account not found"))
		return
	}
	if field == "avatar" {
		previousID = account.AvatarID
		update.AvatarID = &object.ID
		update.AvatarURL = &object.URL
	} else {
		previousID = account.CoverID
		update.CoverID = &object.ID
		update.CoverURL = &object.URL
	}

	account, err = h.Store.UpdateAccountMedia(r.Context(), identity.ID, update)
	if err != nil {
		_ = h.Media.Delete(r.Context(), object.ID)
		writeAppError(w, h.Logger, err)
		return
	}
	if previousID != "" {
		if err := h.Media.Delete(r.Context(), previousID); err != nil {
			h.Logger.Warn("delete replaced account image", "asset_id", previousID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}
