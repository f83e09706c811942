package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = 30 * time.Minute
)

var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid credentials")
	ErrUserNotFound       = apperror.NotFound("user")
	ErrEmailTaken         = apperror.Conflict("email_taken", "email is already registered")
	ErrInvalidToken       = apperror.BadRequest("invalid_token", "invalid or expired token")
)

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type UserService struct {
	users     repo.UserRepository
	audit     repo.AuditLogRepository
	sessions  *cache.SessionStore
	tokens    *cache.TokenStore
	jwt       *helpers.JWTManager
	uploads   *UploadService
	notify    *Notifier
	logger    *logrus.Logger
	verifyURL string
	resetURL  string
}

type UserServiceDeps struct {
	Users     repo.UserRepository
	Audit     repo.AuditLogRepository
	Sessions  *cache.SessionStore
	Tokens    *cache.TokenStore
	JWT       *helpers.JWTManager
	Uploads   *UploadService
	Notifier  *Notifier
	Logger    *logrus.Logger
	VerifyURL string
	ResetURL  string
}

func NewUserService(d UserServiceDeps) *UserService {
	return &UserService{
		users:     d.Users,
		audit:     d.Audit,
		sessions:  d.Sessions,
		tokens:    d.Tokens,
		jwt:       d.JWT,
		uploads:   d.Uploads,
		notify:    d.Notifier,
		logger:    d.Logger,
		verifyURL: d.VerifyURL,
		resetURL:  d.ResetURL,
	}
}

// recordAudit writes an audit row; failures are logged only.
func (s *UserService) recordAudit(ctx context.Context, userID, email, action string, meta RequestMeta, md map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Insert(ctx, entity.AuditLog{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Metadata:  md,
	})
	if err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("audit insert failed")
	}
}

func (s *UserService) getUser(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

// issueTokens starts a new session, replacing any previous one.
func (s *UserService) issueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	pair, err := s.signPair(u.ID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	err = s.sessions.Save(ctx, cache.Session{
		UserID:    u.ID,
		SessionID: sid,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.PrimaryRole(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("save session failed")
		return TokenPair{}, apperror.Internal(err)
	}
	return pair, nil
}

func (s *UserService) signPair(userID, sid string) (TokenPair, error) {
	access, aexp, err := s.jwt.GenerateAccessToken(userID, sid)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("generate access token failed")
		return TokenPair{}, apperror.Internal(err)
	}
	refresh, rexp, err := s.jwt.GenerateRefreshToken(userID, sid)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("generate refresh token failed")
		return TokenPair{}, apperror.Internal(err)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// Register creates a customer account and logs it in.
func (s *UserService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*entity.User, TokenPair, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, TokenPair{}, apperror.Internal(err)
	}
	u := &entity.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: hash,
		Name:     strings.TrimSpace(in.Name),
		Phone:    strings.TrimSpace(in.Phone),
		Roles:    []string{entity.RoleCustomer},
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, TokenPair{}, ErrEmailTaken
		}
		return nil, TokenPair{}, apperror.Internal(err)
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.recordAudit(ctx, u.ID, u.Email, "register", meta, nil)
	s.notify.Welcome(ctx, u)
	s.logger.WithField("user_id", u.ID).Info("user registered")
	return u, pair, nil
}

func (s *UserService) Login(ctx context.Context, email, password string, meta RequestMeta) (*entity.User, TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, TokenPair{}, apperror.Internal(err)
	}
	if u == nil || !helpers.CompareHashAndPassword(u.Password, password) {
		s.recordAudit(ctx, "", email, "login_failed", meta, nil)
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.recordAudit(ctx, u.ID, u.Email, "login", meta, nil)
	s.notify.LoginNotification(ctx, u, meta)
	return u, pair, nil
}

// Refresh validates the refresh token against the live session and rotates both tokens.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	sid := uuid.NewString()
	if err := s.sessions.Rotate(ctx, claims.UserID, claims.SessionID, sid); err != nil {
		if errors.Is(err, cache.ErrNoSession) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, apperror.Internal(err)
	}
	return s.signPair(claims.UserID, sid)
}

func (s *UserService) Logout(ctx context.Context, userID string, meta RequestMeta) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return apperror.Internal(err)
	}
	s.recordAudit(ctx, userID, "", "logout", meta, nil)
	return nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*entity.User, error) {
	return s.getUser(ctx, userID)
}

type UpdateProfileInput struct {
	Name  *string
	Phone *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput, meta RequestMeta) (*entity.User, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	changes := map[string]string{}
	if in.Name != nil && strings.TrimSpace(*in.Name) != u.Name {
		u.Name = strings.TrimSpace(*in.Name)
		changes["Name"] = u.Name
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != u.Phone {
		u.Phone = strings.TrimSpace(*in.Phone)
		changes["Phone"] = u.Phone
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.sessions.Update(ctx, u.ID, map[string]any{"name": u.Name}); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("session update failed")
	}
	s.recordAudit(ctx, u.ID, u.Email, "profile_update", meta, map[string]any{"fields": keys(changes)})
	s.notify.ProfileUpdated(ctx, u, changes, meta)
	return u, nil
}

// UploadAvatar stores the image and points the profile at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, data []byte, meta RequestMeta) (*entity.User, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	img, err := s.uploads.UploadImage(ctx, "avatars/"+u.ID, data)
	if err != nil {
		return nil, err
	}
	u.AvatarURL = img.URL
	if err := s.users.Update(ctx, u); err != nil {
		return nil, apperror.Internal(err)
	}
	s.recordAudit(ctx, u.ID, u.Email, "avatar_update", meta, map[string]any{"public_id": img.PublicID})
	return u, nil
}

// VerifyInit mails a verification link. It reports true when the email is already verified.
func (s *UserService) VerifyInit(ctx context.Context, userID string, meta RequestMeta) (bool, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.IsVerified {
		s.recordAudit(ctx, u.ID, u.Email, "verify_init_already", meta, nil)
		return true, nil
	}
	tok, err := helpers.RandomToken(32)
	if err != nil {
		return false, apperror.Internal(err)
	}
	if err := s.tokens.Put(ctx, "verify", tok, u.ID, verifyTokenTTL); err != nil {
		return false, apperror.Internal(err)
	}
	s.notify.VerifyEmail(ctx, u, withToken(s.verifyURL, tok), verifyTokenTTL, meta)
	s.recordAudit(ctx, u.ID, u.Email, "verify_init_issue", meta, nil)
	return false, nil
}

func (s *UserService) VerifyConfirm(ctx context.Context, token string, meta RequestMeta) error {
	uid, err := s.tokens.Take(ctx, "verify", token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return ErrInvalidToken
	}
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.users.SetVerified(ctx, uid); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return apperror.Internal(err)
	}
	s.recordAudit(ctx, uid, "", "verify_confirm", meta, nil)
	return nil
}

// ResetInit mails a reset link when the email is known. The outcome is never revealed.
func (s *UserService) ResetInit(ctx context.Context, email string, meta RequestMeta) error {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.WithError(err).Warn("reset lookup failed")
		}
		s.recordAudit(ctx, "", email, "reset_init_unknown", meta, nil)
		return nil
	}
	tok, err := helpers.RandomToken(32)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.tokens.Put(ctx, "reset", tok, u.ID, resetTokenTTL); err != nil {
		return apperror.Internal(err)
	}
	s.notify.PasswordReset(ctx, u, withToken(s.resetURL, tok), resetTokenTTL, meta)
	s.recordAudit(ctx, u.ID, u.Email, "reset_init_issue", meta, nil)
	return nil
}

// ResetConfirm sets the new password and ends the active session.
func (s *UserService) ResetConfirm(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	uid, err := s.tokens.Take(ctx, "reset", token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return ErrInvalidToken
	}
	if err != nil {
		return apperror.Internal(err)
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, uid, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return apperror.Internal(err)
	}
	if err := s.sessions.Delete(ctx, uid); err != nil {
		s.logger.WithError(err).WithField("user_id", uid).Warn("session delete failed")
	}
	s.recordAudit(ctx, uid, "", "reset_confirm", meta, nil)
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, f entity.UserFilter) (entity.Page[entity.User], error) {
	page, err := s.users.List(ctx, f)
	if err != nil {
		return entity.Page[entity.User]{}, apperror.Internal(err)
	}
	return page, nil
}

// SetRole replaces the user's role. Admins cannot demote themselves.
func (s *UserService) SetRole(ctx context.Context, actorID, userID, role string, meta RequestMeta) (*entity.User, error) {
	if role != entity.RoleAdmin && role != entity.RoleCustomer {
		return nil, apperror.Validation(map[string]string{"role": "must be one of: admin, customer"})
	}
	if actorID == userID && role != entity.RoleAdmin {
		return nil, apperror.BadRequest("self_demotion", "you cannot remove your own admin role")
	}
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Internal(err)
	}
	if err := s.sessions.Update(ctx, userID, map[string]any{"role": role}); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("session role update failed")
	}
	s.recordAudit(ctx, actorID, "", "role_change", meta, map[string]any{"target": userID, "role": role})
	return s.getUser(ctx, userID)
}

func (s *UserService) DeleteUser(ctx context.Context, actorID, userID string, meta RequestMeta) error {
	if actorID == userID {
		return apperror.BadRequest("self_delete", "you cannot delete your own account here")
	}
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return apperror.Internal(err)
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
	}
	s.recordAudit(ctx, actorID, "", "user_delete", meta, map[string]any{"target": userID})
	return nil
}

// UserByID backs the admin user view.
func (s *UserService) UserByID(ctx context.Context, id string) (*entity.User, error) {
	return s.getUser(ctx, id)
}

func withToken(base, tok string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + tok
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
