package services

import (
	"context"
	"errors"
	"solar-workflow-api/models"
	"testing"
	"time"
)

func (e *testEnv) users() *UserService {
	tokens := NewTokenIssuer("test-jwt-secret", 24)
	tokens.now = fixedClock
	s := NewUserService(e.store, tokens, e.log)
	s.now = fixedClock
	return s
}

func TestUserLoginAndAuthenticate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := env.users()

	u, err := svc.Create(ctx, UserInput{Name: "Meera", Email: "Meera@Example.com ", Password: "sunshine42"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "meera@example.com" || u.Role != models.RoleStaff || u.Password == "sunshine42" {
		t.Fatalf("unexpected stored user %+v", u)
	}

	res, err := svc.Login(ctx, "MEERA@example.com", "sunshine42")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || !res.ExpiresAt.Equal(testNow.Add(24*time.Hour)) {
		t.Fatalf("unexpected login result %+v", res)
	}
	claims, user, err := svc.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if claims.UserID != u.ID || claims.Role != models.RoleStaff || user.ID != u.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := svc.Login(ctx, "meera@example.com", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "sunshine42"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, res.Token+"x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for tampered token got %v", err)
	}

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for deleted user got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokenIssuer("secret", 1)
	tokens.now = fixedClock
	token, _, err := tokens.Issue(&models.User{ID: "u1", Email: "a@b.co", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Parse(token); err != nil {
		t.Fatalf("parse fresh token: %v", err)
	}
	tokens.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	if _, err := tokens.Parse(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token got %v", err)
	}
	other := NewTokenIssuer("another-secret", 1)
	other.now = fixedClock
	if _, err := other.Parse(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign signature got %v", err)
	}
}

func TestUserValidationAndPasswordChange(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	svc := env.users()

	u, err := svc.Create(ctx, UserInput{Name: "Ravi", Email: "ravi@example.com", Password: "password1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var verr *ValidationError
	if _, err := svc.Create(ctx, UserInput{Name: "Dup", Email: "RAVI@example.com", Password: "password1"}); !errors.As(err, &verr) {
		t.Fatalf("expected duplicate email rejected got %v", err)
	}
	if _, err := svc.Create(ctx, UserInput{Name: "Short", Email: "s@example.com", Password: "short"}); !errors.As(err, &verr) {
		t.Fatalf("expected short password rejected got %v", err)
	}
	if _, err := svc.Create(ctx, UserInput{Name: "Role", Email: "r@example.com", Password: "password1", Role: "owner"}); !errors.As(err, &verr) {
		t.Fatalf("expected unknown role rejected got %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "nope", "newpassword"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized with wrong current password got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "password1", "tiny"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for short new password got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "password1", "newpassword"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "ravi@example.com", "newpassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	name := "Ravi K"
	updated, err := svc.Update(ctx, u.ID, UserUpdate{Name: &name})
	if err != nil || updated.Name != name {
		t.Fatalf("update: %+v %v", updated, err)
	}
	users, err := svc.List(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("list: %d %v", len(users), err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
