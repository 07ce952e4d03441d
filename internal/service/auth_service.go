package service

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"resume-anonymizer/internal/domain"
)

const tokenCacheTTL = 30 * time.Second

type tokenCacheEntry struct {
	user      *domain.SupabaseUser
	expiresAt time.Time
}

type authService struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	now            func() time.Time

	tokenCacheMu sync.RWMutex
	tokenCache   map[string]tokenCacheEntry
}

func NewAuthService(
	supabaseClient domain.SupabaseClient,
	logger domain.Logger,
) *authService {
	return &authService{
		supabaseClient: supabaseClient,
		logger:         logger,
		now:            time.Now,
		tokenCache:     make(map[string]tokenCacheEntry),
	}
}

// ValidateToken resolves a bearer token to its user. Successful lookups are cached
// briefly since every editor action is authenticated.
func (s *authService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	now := s.now()
	s.tokenCacheMu.RLock()
	entry, ok := s.tokenCache[token]
	s.tokenCacheMu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.user, nil
	}

	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.tokenCacheMu.Lock()
	for key, cached := range s.tokenCache {
		if !now.Before(cached.expiresAt) {
			delete(s.tokenCache, key)
		}
	}
	s.tokenCache[token] = tokenCacheEntry{user: user, expiresAt: now.Add(tokenCacheTTL)}
	s.tokenCacheMu.Unlock()

	return user, nil
}

// DevUserID owns every session created through the development token.
const DevUserID = "dev-user"

type devAuthService struct {
	token  string
	logger domain.Logger
}

// NewDevAuthService accepts a single static bearer token as the local development user.
// It only stands in for Supabase Auth when Supabase is not configured.
func NewDevAuthService(token string, logger domain.Logger) *devAuthService {
	return &devAuthService{token: token, logger: logger}
}

func (s *devAuthService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		s.logger.Debug("Development token rejected")
		return nil, fmt.Errorf("invalid token: %w", domain.ErrInvalidToken)
	}
	return &domain.SupabaseUser{ID: DevUserID, Email: "dev@localhost"}, nil
}
