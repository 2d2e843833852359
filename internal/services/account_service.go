package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

// DefaultVerifyCode is the code accepted by Verify when none is configured.
const DefaultVerifyCode = "123456"

// Registration is the sign-up form.
type Registration struct {
	Name     string
	Email    string
	Type     domain.UserType
	Document string
}

// AccountService handles the local account and UI preferences.
// A registration stays in memory until it is verified.
type AccountService struct {
	KV         repo.KVGateway
	VerifyCode string

	mu      sync.Mutex
	pending map[string]domain.User
}

func NewAccountService(kv repo.KVGateway, verifyCode string) *AccountService {
	if strings.TrimSpace(verifyCode) == "" {
		verifyCode = DefaultVerifyCode
	}
	return &AccountService{KV: kv, VerifyCode: verifyCode}
}

// Register records a pending account awaiting verification.
func (s *AccountService) Register(ctx context.Context, userID string, in Registration) (domain.User, error) {
	u := domain.User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Type:     in.Type,
		Document: strings.TrimSpace(in.Document),
	}
	if u.Document == "" || u.Validate() != nil {
		return domain.User{}, ErrMissingFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]domain.User)
	}
	s.pending[userID] = u
	log.Ctx(ctx).Info().Str("user_id", userID).Str("type", string(u.Type)).Msg("registration pending verification")
	return u, nil
}

// Verify confirms the pending registration and stores it as the current user.
func (s *AccountService) Verify(ctx context.Context, userID, code string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.pending[userID]
	if !ok {
		return domain.User{}, ErrNotRegistered
	}
	if strings.TrimSpace(code) != s.VerifyCode {
		return domain.User{}, ErrInvalidCode
	}
	u.IsVerified = true
	delete(s.pending, userID)
	persist(ctx, s.KV, repo.UserKey(userID, repo.KeyUser), repo.KeyUser, u)
	return u, nil
}

// Current returns the stored user, or ErrNotRegistered.
func (s *AccountService) Current(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	found, err := repo.Load(ctx, s.KV, repo.UserKey(userID, repo.KeyUser), &u)
	switch {
	case errors.Is(err, repo.ErrSchemaVersion):
		log.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("stored user written by an unknown version")
		return domain.User{}, ErrStorageUnavailable
	case errors.Is(err, repo.ErrCorrupt):
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable user")
		return domain.User{}, ErrNotRegistered
	case err != nil:
		return domain.User{}, ErrStorageUnavailable
	case !found:
		return domain.User{}, ErrNotRegistered
	}
	if err := u.Validate(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("discarding invalid user")
		return domain.User{}, ErrNotRegistered
	}
	return u, nil
}

// Logout removes the stored user. Processes, chats and theme are kept.
func (s *AccountService) Logout(ctx context.Context, userID string) error {
	if err := s.KV.Delete(ctx, repo.UserKey(userID, repo.KeyUser)); err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("logout delete failed")
	}
	return nil
}

// Theme returns the stored theme, light when unset or unreadable.
func (s *AccountService) Theme(ctx context.Context, userID string) domain.Theme {
	var t domain.Theme
	found, err := repo.Load(ctx, s.KV, repo.UserKey(userID, repo.KeyTheme), &t)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("theme unreadable")
		return domain.ThemeLight
	}
	if !found || (t != domain.ThemeLight && t != domain.ThemeDark) {
		return domain.ThemeLight
	}
	return t
}

// SetTheme stores the theme preference.
func (s *AccountService) SetTheme(ctx context.Context, userID string, t domain.Theme) error {
	if t != domain.ThemeLight && t != domain.ThemeDark {
		return ErrInvalidTheme
	}
	persist(ctx, s.KV, repo.UserKey(userID, repo.KeyTheme), repo.KeyTheme, t)
	return nil
}
