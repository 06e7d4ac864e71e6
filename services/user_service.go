package services

import (
	"context"
	"fmt"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"solar-workflow-api/utils"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserInput creates a user.
type UserInput struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin staff"`
	Phone    string `json:"phone"`
}

// UserUpdate changes the provided user fields.
type UserUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
	Role  *string `json:"role" binding:"omitempty,oneof=admin staff"`
	Phone *string `json:"phone"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type UserService struct {
	store  *store.Store
	tokens *TokenIssuer
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewUserService(st *store.Store, tokens *TokenIssuer, log logrus.FieldLogger) *UserService {
	return &UserService{store: st, tokens: tokens, log: log, now: time.Now}
}

// HashPassword hashes password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares password with hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(utils.SanitizeInput(email))
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := s.store.Users.Find(ctx, store.Query{Filters: []store.Filter{store.Eq("email", normalizeEmail(email))}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, store.ErrNotFound
	}
	return &users[0], nil
}

// Login checks the credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil || !CheckPasswordHash(password, user.Password) {
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: *user}, nil
}

// Authenticate resolves a bearer token to a stored user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*Claims, *models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.store.Users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", ErrUnauthorized)
	}
	return claims, user, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if !utils.ValidateEmail(email) {
		return nil, invalid("email", "%q is not an e-mail address", in.Email)
	}
	if ok, msg := utils.ValidatePassword(in.Password); !ok {
		return nil, invalid("password", "%s", msg)
	}
	role := in.Role
	if role == "" {
		role = models.RoleStaff
	}
	if !models.IsRoleValid(role) {
		return nil, invalid("role", "must be admin or staff")
	}
	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, invalid("email", "%s is already registered", email)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Name:      utils.SanitizeInput(in.Name),
		Email:     email,
		Password:  hash,
		Role:      role,
		Phone:     utils.SanitizeInput(in.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("user created")
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users.Find(ctx, store.Query{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		user.Name = utils.SanitizeInput(*upd.Name)
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !utils.ValidateEmail(email) {
			return nil, invalid("email", "%q is not an e-mail address", *upd.Email)
		}
		if other, err := s.findByEmail(ctx, email); err == nil && other.ID != user.ID {
			return nil, invalid("email", "%s is already registered", email)
		}
		user.Email = email
	}
	if upd.Role != nil {
		if !models.IsRoleValid(*upd.Role) {
			return nil, invalid("role", "must be admin or staff")
		}
		user.Role = *upd.Role
	}
	if upd.Phone != nil {
		user.Phone = utils.SanitizeInput(*upd.Phone)
	}
	user.UpdatedAt = s.now()
	if err := s.store.Users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.store.Users.Delete(ctx, id); err != nil {
		return notFound("user", id, err)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPasswordHash(current, user.Password) {
		return fmt.Errorf("current password is incorrect: %w", ErrUnauthorized)
	}
	if ok, msg := utils.ValidatePassword(next); !ok {
		return invalid("new_password", "%s", msg)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = hash
	user.UpdatedAt = s.now()
	if err := s.store.Users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// EnsureUser returns the user with email, creating it when missing.
func (s *UserService) EnsureUser(ctx context.Context, in UserInput) (*models.User, bool, error) {
	if existing, err := s.findByEmail(ctx, in.Email); err == nil {
		return existing, false, nil
	}
	user, err := s.Create(ctx, in)
	return user, err == nil, err
}
