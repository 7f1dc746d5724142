package branch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
	"github.com/sharath018/bgv-verification-backend/utils"
)

var (
	ErrWrongPassword     = errors.New("incorrect password")
	ErrAccountUnverified = errors.New("account is not verified yet")
	ErrAccountSuspended  = errors.New("account is suspended")
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
)

// LoginResult identifies which actor row matched and carries the fresh
// session token.
type LoginResult struct {
	ActorID     uint
	Kind        access.ActorKind
	CustomerID  uint
	BranchID    uint
	Name        string
	Email       string
	Token       string
	TokenExpiry time.Time
}

type Service interface {
	Login(ctx context.Context, email, password, ip string) (*LoginResult, error)
	ValidateLogin(ctx context.Context, kind access.ActorKind, actorID uint, token string) (string, error)
	Logout(ctx context.Context, kind access.ActorKind, actorID uint, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type service struct {
	repo     Repository
	access   access.Service
	logs     activitylog.Service
	mail     mailer.Dispatcher
	frontend string
}

func NewService(repo Repository, accessSvc access.Service, logs activitylog.Service, mail mailer.Dispatcher, cfg *config.Config) Service {
	return &service{
		repo:     repo,
		access:   accessSvc,
		logs:     logs,
		mail:     mail,
		frontend: cfg.FrontendURL,
	}
}

func (s *service) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	result, err := s.login(ctx, email, password)

	actorID := uint(0)
	kind := string(access.ActorBranch)
	if result != nil {
		actorID = result.ActorID
		kind = string(result.Kind)
	}
	s.logs.Record(ctx, actorID, kind, "branch", "login", err == nil,
		map[string]interface{}{"email": email}, err, ip)

	return result, err
}

func (s *service) login(ctx context.Context, email, password string) (*LoginResult, error) {
	// Primary branch account first, then sub-users.
	b, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if err := checkCredentials(b.Status, b.Password, password); err != nil {
			return nil, err
		}
		token, expiry, err := s.access.IssueToken(ctx, access.ActorBranch, b.ID)
		if err != nil {
			return nil, err
		}
		return &LoginResult{
			ActorID:     b.ID,
			Kind:        access.ActorBranch,
			CustomerID:  b.CustomerID,
			BranchID:    b.ID,
			Name:        b.Name,
			Email:       b.Email,
			Token:       token,
			TokenExpiry: expiry,
		}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	su, err := s.repo.FindSubUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := checkCredentials(su.Status, su.Password, password); err != nil {
		return nil, err
	}
	token, expiry, err := s.access.IssueToken(ctx, access.ActorSubUser, su.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		ActorID:     su.ID,
		Kind:        access.ActorSubUser,
		CustomerID:  su.CustomerID,
		BranchID:    su.BranchID,
		Email:       su.Email,
		Token:       token,
		TokenExpiry: expiry,
	}, nil
}

func checkCredentials(status int16, hash, password string) error {
	switch status {
	case access.StatusUnverified:
		return ErrAccountUnverified
	case access.StatusSuspended:
		return ErrAccountSuspended
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

func (s *service) ValidateLogin(ctx context.Context, kind access.ActorKind, actorID uint, token string) (string, error) {
	return s.access.ValidateToken(ctx, kind, actorID, token)
}

func (s *service) Logout(ctx context.Context, kind access.ActorKind, actorID uint, token string) error {
	return s.access.Logout(ctx, kind, actorID, token)
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	isSubUser := false
	var id uint
	var name string

	b, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		id, name = b.ID, b.Name
	} else if errors.Is(err, ErrNotFound) {
		su, suErr := s.repo.FindSubUserByEmail(ctx, email)
		if suErr != nil {
			return suErr
		}
		isSubUser = true
		id = su.ID
	} else {
		return err
	}

	resetToken := generateSecureToken()
	key := fmt.Sprintf("reset_token:branch:%s", resetToken)
	val := fmt.Sprintf("%d:%t", id, isSubUser)
	if err := utils.SetToken(key, val, 15*time.Minute); err != nil {
		return errors.New("could not save reset token")
	}

	resetLink := fmt.Sprintf("%s/branch/reset-password?token=%s", s.frontend, resetToken)
	s.mail.Dispatch(ctx, mailer.Job{
		Module: "branch",
		Action: "forgot_password",
		Vars: map[string]string{
			"name":       name,
			"reset_link": resetLink,
		},
		To: []string{email},
	})
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	key := fmt.Sprintf("reset_token:branch:%s", token)
	val, err := utils.GetToken(key)
	if err != nil {
		return ErrResetTokenInvalid
	}

	var id uint
	var isSubUser bool
	if _, err := fmt.Sscanf(val, "%d:%t", &id, &isSubUser); err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, isSubUser, id, string(hash)); err != nil {
		return err
	}

	_ = utils.DeleteToken(key)
	return nil
}

func generateSecureToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
