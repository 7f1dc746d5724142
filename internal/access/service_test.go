package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeRepo struct {
	actors map[string]*Actor
	saved  map[string]string // kind:id to last stored token
}

func key(kind ActorKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{actors: map[string]*Actor{}, saved: map[string]string{}}
}

func (f *fakeRepo) put(a *Actor) {
	f.actors[key(a.Kind, a.ID)] = a
}

func (f *fakeRepo) FindActor(ctx context.Context, kind ActorKind, id uint) (*Actor, error) {
	a, ok := f.actors[key(kind, id)]
	if !ok {
		return nil, ErrActorNotFound
	}
	return a, nil
}

func (f *fakeRepo) SaveToken(ctx context.Context, kind ActorKind, id uint, token string, expiry time.Time) error {
	a, ok := f.actors[key(kind, id)]
	if !ok {
		return ErrActorNotFound
	}
	a.LoginToken = &token
	a.TokenExpiry = &expiry
	f.saved[key(kind, id)] = token
	return nil
}

func (f *fakeRepo) ClearToken(ctx context.Context, kind ActorKind, id uint) error {
	a, ok := f.actors[key(kind, id)]
	if !ok {
		return ErrActorNotFound
	}
	a.LoginToken = nil
	a.TokenExpiry = nil
	return nil
}

func newTestService(repo Repository, now time.Time) *service {
	return &service{
		repo:   repo,
		secret: "test-secret",
		ttl:    2 * time.Hour,
		now:    func() time.Time { return now },
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestValidateTokenRotatesOnSuccess(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          1,
		Kind:        ActorBranch,
		LoginToken:  strPtr("current-token"),
		TokenExpiry: timePtr(now.Add(time.Hour)),
	})
	svc := newTestService(repo, now)

	rotated, err := svc.ValidateToken(context.Background(), ActorBranch, 1, "current-token")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if rotated == "" || rotated == "current-token" {
		t.Fatalf("expected a fresh token, got %q", rotated)
	}
	if got := repo.saved[key(ActorBranch, 1)]; got != rotated {
		t.Fatalf("rotated token not persisted: stored %q, returned %q", got, rotated)
	}
}

func TestValidateTokenRejectsMismatch(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          1,
		Kind:        ActorAdmin,
		LoginToken:  strPtr("stored"),
		TokenExpiry: timePtr(now.Add(time.Hour)),
	})
	svc := newTestService(repo, now)

	if _, err := svc.ValidateToken(context.Background(), ActorAdmin, 1, "other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenRejectsExpiredEvenWhenMatching(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          2,
		Kind:        ActorBranch,
		LoginToken:  strPtr("stored"),
		TokenExpiry: timePtr(now.Add(-time.Minute)),
	})
	svc := newTestService(repo, now)

	if _, err := svc.ValidateToken(context.Background(), ActorBranch, 2, "stored"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTokenUnknownActor(t *testing.T) {
	svc := newTestService(newFakeRepo(), time.Now())
	if _, err := svc.ValidateToken(context.Background(), ActorBranch, 99, "x"); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound, got %v", err)
	}
}

func TestValidateTokenNoStoredSession(t *testing.T) {
	repo := newFakeRepo()
	repo.put(&Actor{ID: 3, Kind: ActorSubUser})
	svc := newTestService(repo, time.Now())

	if _, err := svc.ValidateToken(context.Background(), ActorSubUser, 3, "anything"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIssueTokenRejectsLiveSession(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          1,
		Kind:        ActorBranch,
		LoginToken:  strPtr("live"),
		TokenExpiry: timePtr(now.Add(time.Hour)),
	})
	svc := newTestService(repo, now)

	if _, _, err := svc.IssueToken(context.Background(), ActorBranch, 1); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Fatalf("expected ErrAlreadyLoggedIn, got %v", err)
	}
}

func TestIssueTokenAllowsExpiredSession(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          1,
		Kind:        ActorBranch,
		LoginToken:  strPtr("stale"),
		TokenExpiry: timePtr(now.Add(-time.Hour)),
	})
	svc := newTestService(repo, now)

	token, expiry, err := svc.IssueToken(context.Background(), ActorBranch, 1)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token == "" || !expiry.After(now) {
		t.Fatalf("bad token/expiry: %q %v", token, expiry)
	}
}

func TestLogoutRequiresMatchingToken(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.put(&Actor{
		ID:          1,
		Kind:        ActorAdmin,
		LoginToken:  strPtr("stored"),
		TokenExpiry: timePtr(now.Add(-time.Hour)), // expired is fine for logout
	})
	svc := newTestService(repo, now)

	if err := svc.Logout(context.Background(), ActorAdmin, 1, "wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := svc.Logout(context.Background(), ActorAdmin, 1, "stored"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if a := repo.actors[key(ActorAdmin, 1)]; a.LoginToken != nil {
		t.Fatal("token not cleared after logout")
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name        string
		permissions string
		resource    string
		verb        string
		allowed     bool
	}{
		{"granted verb", `{"cmt_application":{"view":true}}`, "cmt_application", "view", true},
		{"missing verb", `{"cmt_application":{"view":true}}`, "cmt_application", "generate_report", false},
		{"missing resource", `{"cmt_application":{"view":true}}`, "client_application", "view", false},
		{"empty blob", ``, "cmt_application", "view", false},
		{"null blob", `null`, "cmt_application", "view", false},
		{"double encoded", `"{\"client_application\":{\"add\":true}}"`, "client_application", "add", true},
		{"string truthy flag", `{"branch":{"login":"1"}}`, "branch", "login", true},
		{"numeric falsy flag", `{"branch":{"login":0}}`, "branch", "login", false},
		{"resource-wide bool", `{"client_application":true}`, "client_application", "delete", true},
		{"explicit false beats wildcard absence", `{"cmt_application":{"view":false}}`, "cmt_application", "view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.put(&Actor{ID: 1, Kind: ActorAdmin, Permissions: []byte(tt.permissions)})
			svc := newTestService(repo, time.Now())

			err := svc.Authorize(context.Background(), ActorAdmin, 1, tt.resource, tt.verb)
			if tt.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
		})
	}
}

func TestParsePermissionsMalformed(t *testing.T) {
	if _, err := ParsePermissions([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed blob")
	}
	perms, err := ParsePermissions([]byte(`"still a string`))
	if perms != nil || err == nil {
		t.Fatalf("expected error for truncated double-encoded blob, got %v %v", perms, err)
	}
}
