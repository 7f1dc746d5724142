package access

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sharath018/bgv-verification-backend/config"
)

type Service interface {
	// ValidateToken checks the supplied token against the stored one and,
	// on success, rotates it. The rotated token must be echoed back to the
	// client in the response body.
	ValidateToken(ctx context.Context, kind ActorKind, actorID uint, token string) (string, error)

	// Authorize loads the actor's permission map and checks one
	// {resource: verb} pair. Fail-closed: anything missing means denied.
	Authorize(ctx context.Context, kind ActorKind, actorID uint, resource, verb string) error

	// IssueToken mints and persists a fresh session token for login flows.
	// It rejects the login when a live session already exists.
	IssueToken(ctx context.Context, kind ActorKind, actorID uint) (string, time.Time, error)

	// RevokeToken clears the stored session (logout).
	RevokeToken(ctx context.Context, kind ActorKind, actorID uint) error

	// Logout clears the session after confirming the caller holds the
	// stored token. An expired token can still log out.
	Logout(ctx context.Context, kind ActorKind, actorID uint, token string) error
}

type service struct {
	repo   Repository
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		secret: cfg.TokenSecret,
		ttl:    time.Duration(cfg.TokenTTLHours) * time.Hour,
		now:    time.Now,
	}
}

func (s *service) ValidateToken(ctx context.Context, kind ActorKind, actorID uint, token string) (string, error) {
	actor, err := s.repo.FindActor(ctx, kind, actorID)
	if err != nil {
		return "", err
	}

	if actor.LoginToken == nil || *actor.LoginToken == "" {
		return "", ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(*actor.LoginToken), []byte(token)) != 1 {
		return "", ErrInvalidToken
	}
	if actor.TokenExpiry == nil || !actor.TokenExpiry.After(s.now()) {
		return "", ErrTokenExpired
	}

	// Rotate on every validated request. Two concurrent requests carrying
	// the same token can race here; the loser re-authenticates. Accepted
	// for this system's single-operator usage.
	return s.rotate(ctx, kind, actorID)
}

func (s *service) rotate(ctx context.Context, kind ActorKind, actorID uint) (string, error) {
	token, expiry, err := s.mint(kind, actorID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveToken(ctx, kind, actorID, token, expiry); err != nil {
		return "", err
	}
	return token, nil
}

func (s *service) mint(kind ActorKind, actorID uint) (string, time.Time, error) {
	expiry := s.now().Add(s.ttl)
	claims := jwt.MapClaims{
		"actor_id": actorID,
		"kind":     string(kind),
		"exp":      expiry.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

func (s *service) IssueToken(ctx context.Context, kind ActorKind, actorID uint) (string, time.Time, error) {
	actor, err := s.repo.FindActor(ctx, kind, actorID)
	if err != nil {
		return "", time.Time{}, err
	}
	if actor.HasLiveSession(s.now()) {
		return "", time.Time{}, ErrAlreadyLoggedIn
	}

	token, expiry, err := s.mint(kind, actorID)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.repo.SaveToken(ctx, kind, actorID, token, expiry); err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

func (s *service) RevokeToken(ctx context.Context, kind ActorKind, actorID uint) error {
	return s.repo.ClearToken(ctx, kind, actorID)
}

func (s *service) Logout(ctx context.Context, kind ActorKind, actorID uint, token string) error {
	actor, err := s.repo.FindActor(ctx, kind, actorID)
	if err != nil {
		return err
	}
	if actor.LoginToken == nil || subtle.ConstantTimeCompare([]byte(*actor.LoginToken), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return s.repo.ClearToken(ctx, kind, actorID)
}

func (s *service) Authorize(ctx context.Context, kind ActorKind, actorID uint, resource, verb string) error {
	actor, err := s.repo.FindActor(ctx, kind, actorID)
	if err != nil {
		return err
	}

	perms, err := ParsePermissions(actor.Permissions)
	if err != nil || perms == nil {
		return ErrPermissionDenied
	}

	verbs, ok := perms[resource]
	if !ok {
		return ErrPermissionDenied
	}
	allowed, ok := verbs[verb]
	if !ok {
		allowed, ok = verbs["*"]
	}
	if !ok || !allowed {
		return ErrPermissionDenied
	}
	return nil
}

// ParsePermissions decodes the permissions jsonb blob. Some rows carry the
// map JSON-encoded twice (a string containing JSON); parse once, and if the
// result is still a string, parse again.
func ParsePermissions(blob []byte) (map[string]map[string]bool, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	var once interface{}
	if err := json.Unmarshal(blob, &once); err != nil {
		return nil, err
	}
	if inner, ok := once.(string); ok {
		if err := json.Unmarshal([]byte(inner), &once); err != nil {
			return nil, err
		}
	}

	raw, ok := once.(map[string]interface{})
	if !ok {
		return nil, nil
	}

	perms := make(map[string]map[string]bool, len(raw))
	for resource, v := range raw {
		verbs := make(map[string]bool)
		switch vv := v.(type) {
		case map[string]interface{}:
			for verb, flag := range vv {
				verbs[verb] = truthy(flag)
			}
		case bool:
			// legacy rows grant/deny the whole resource
			verbs["*"] = vv
		}
		perms[resource] = verbs
	}
	return perms, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || t == "true" || t == "yes"
	case float64:
		return t != 0
	default:
		return false
	}
}
