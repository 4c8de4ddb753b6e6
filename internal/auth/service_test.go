package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeStaff struct {
	byUsername map[string]Staff
}

func (f *fakeStaff) GetByUsername(_ context.Context, username string) (Staff, error) {
	st, ok := f.byUsername[username]
	if !ok {
		return Staff{}, pgx.ErrNoRows
	}
	return st, nil
}

func testStaff(t *testing.T, password string) Staff {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return Staff{ID: uuid.New(), Username: "budi", Role: RoleManager, PasswordHash: hash, Active: true}
}

func newTestService(t *testing.T, staff Staff) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:     &fakeStaff{byUsername: map[string]Staff{staff.Username: staff}},
		Secret:    "test-secret-key",
		AccessTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginAndParseRoundTrip(t *testing.T) {
	staff := testStaff(t, "rahasia-dapur")
	svc := newTestService(t, staff)

	token, got, err := svc.Login(context.Background(), "budi", "rahasia-dapur")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != staff.ID {
		t.Fatalf("unexpected staff: %+v", got)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != staff.ID || claims.Role != RoleManager {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, testStaff(t, "rahasia-dapur"))
	if _, _, err := svc.Login(context.Background(), "budi", "salah"); err == nil {
		t.Fatal("wrong password must fail")
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(t, testStaff(t, "rahasia-dapur"))
	if _, _, err := svc.Login(context.Background(), "siapa", "rahasia-dapur"); err == nil {
		t.Fatal("unknown user must fail")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	staff := testStaff(t, "rahasia-dapur")
	staff.Active = false
	svc := newTestService(t, staff)
	if _, _, err := svc.Login(context.Background(), "budi", "rahasia-dapur"); err == nil {
		t.Fatal("inactive account must fail")
	}
}

func TestParseExpiredToken(t *testing.T) {
	staff := testStaff(t, "rahasia-dapur")
	svc := newTestService(t, staff)
	past := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	token, _, err := svc.Login(context.Background(), "budi", "rahasia-dapur")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.WithNow(time.Now)
	if _, err := svc.Parse(token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}
