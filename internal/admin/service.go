package admin

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

type LoginResult struct {
	Admin       *Admin
	Token       string
	TokenExpiry time.Time
}

type Service interface {
	Login(ctx context.Context, email, password, ip string) (*LoginResult, error)
	Logout(ctx context.Context, adminID uint, token string) error
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

	adminID := uint(0)
	if result != nil {
		adminID = result.Admin.ID
	}
	s.logs.Record(ctx, adminID, string(access.ActorAdmin), "admin", "login", err == nil,
		map[string]interface{}{"email": email}, err, ip)

	return result, err
}

func (s *service) login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case access.StatusUnverified:
		return nil, ErrAccountUnverified
	case access.StatusSuspended:
		return nil, ErrAccountSuspended
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	token, expiry, err := s.access.IssueToken(ctx, access.ActorAdmin, a.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Admin: a, Token: token, TokenExpiry: expiry}, nil
}

func (s *service) Logout(ctx context.Context, adminID uint, token string) error {
	return s.access.Logout(ctx, access.ActorAdmin, adminID, token)
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	resetToken := generateSecureToken()
	key := fmt.Sprintf("reset_token:admin:%s", resetToken)
	if err := utils.SetToken(key, fmt.Sprint(a.ID), 15*time.Minute); err != nil {
		return errors.New("could not save reset token")
	}

	resetLink := fmt.Sprintf("%s/admin/reset-password?token=%s", s.frontend, resetToken)
	s.mail.Dispatch(ctx, mailer.Job{
		Module: "admin",
		Action: "forgot_password",
		Vars: map[string]string{
			"name":       a.Name,
			"reset_link": resetLink,
		},
		To: []string{a.Email},
	})
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	key := fmt.Sprintf("reset_token:admin:%s", token)
	val, err := utils.GetToken(key)
	if err != nil {
		return ErrResetTokenInvalid
	}

	var adminID uint
	if _, err := fmt.Sscan(val, &adminID); err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, adminID, string(hash)); err != nil {
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
