package database

import (
	"context"
	"errors"
	"testing"
)

func TestUsersIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	has, err := db.HasUsers(ctx)
	if err != nil || has {
		t.Fatalf("HasUsers on empty catalog = %v, %v", has, err)
	}

	id, err := db.CreateUser(ctx, "alice", "secret123", RoleAdmin, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := db.CreateUser(ctx, "alice", "another1", RoleUser, ""); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("duplicate user err = %v, want ErrUniqueViolation", err)
	}
	if _, err := db.CreateUser(ctx, "bob", "short", RoleUser, ""); err == nil {
		t.Error("expected error for short password")
	}
	if _, err := db.CreateUser(ctx, "bob", "secret123", Role("root"), ""); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("bad role err = %v, want ErrInvalidEnum", err)
	}

	u, err := db.GetUser(ctx, id)
	if err != nil || u == nil {
		t.Fatalf("GetUser = %+v, %v", u, err)
	}
	if u.PasswordHash == "secret123" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if u.Role != RoleAdmin || !u.IsActive || u.LastLogin != nil {
		t.Errorf("user = %+v", u)
	}

	t.Run("authenticate", func(t *testing.T) {
		got, err := db.AuthenticateUser(ctx, "alice", "secret123")
		if err != nil {
			t.Fatalf("AuthenticateUser failed: %v", err)
		}
		if got.ID != id || got.LastLogin == nil {
			t.Errorf("authenticated user = %+v", got)
		}
		if _, err := db.AuthenticateUser(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("wrong password err = %v", err)
		}
		if _, err := db.AuthenticateUser(ctx, "nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("unknown user err = %v", err)
		}
	})

	t.Run("change password", func(t *testing.T) {
		ok, err := db.ChangeUserPassword(ctx, id, "newsecret")
		if err != nil || !ok {
			t.Fatalf("ChangeUserPassword = %v, %v", ok, err)
		}
		if _, err := db.AuthenticateUser(ctx, "alice", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Error("old password should no longer work")
		}
		if _, err := db.AuthenticateUser(ctx, "alice", "newsecret"); err != nil {
			t.Errorf("new password rejected: %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		ok, err := db.UpdateUser(ctx, id, UserUpdate{Email: Ptr("a@studio.test"), Role: Ptr(RoleUser)})
		if err != nil || !ok {
			t.Fatalf("UpdateUser = %v, %v", ok, err)
		}
		u, _ := db.GetUserByUsername(ctx, "alice")
		if u.Email != "a@studio.test" || u.Role != RoleUser {
			t.Errorf("updated user = %+v", u)
		}
		ok, err = db.UpdateUser(ctx, id, UserUpdate{})
		if err != nil || ok {
			t.Errorf("empty UpdateUser = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("delete deactivates", func(t *testing.T) {
		ok, err := db.DeleteUser(ctx, id)
		if err != nil || !ok {
			t.Fatalf("DeleteUser = %v, %v", ok, err)
		}
		u, _ := db.GetUser(ctx, id)
		if u == nil || u.IsActive {
			t.Errorf("deleted user should be kept inactive: %+v", u)
		}
		if _, err := db.AuthenticateUser(ctx, "alice", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
			t.Error("inactive user must not authenticate")
		}
		users, _ := db.GetAllUsers(ctx)
		if len(users) != 1 {
			t.Errorf("GetAllUsers = %d users, want 1", len(users))
		}
	})
}

func TestSessionsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "alice", "secret123", RoleUser, "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	s, err := db.CreateSession(ctx, uid, "ws01")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if s.Token == "" || s.TokenHash == s.Token || s.TokenHash != hashToken(s.Token) {
		t.Errorf("session token handling wrong: %+v", s)
	}

	active, err := db.GetActiveSession(ctx, uid, "ws01")
	if err != nil || active == nil || active.ID != s.ID {
		t.Fatalf("GetActiveSession = %+v, %v", active, err)
	}
	if active.Token != "" {
		t.Error("stored session must not expose the token")
	}
	if other, _ := db.GetActiveSession(ctx, uid, "ws02"); other != nil {
		t.Errorf("unexpected session on ws02: %+v", other)
	}

	u, err := db.ValidateSession(ctx, s.Token)
	if err != nil || u == nil || u.ID != uid {
		t.Fatalf("ValidateSession = %+v, %v", u, err)
	}
	if u, _ := db.ValidateSession(ctx, "not-a-token"); u != nil {
		t.Error("unknown token should not validate")
	}

	ended, err := db.EndSession(ctx, s.ID)
	if err != nil || !ended {
		t.Fatalf("EndSession = %v, %v", ended, err)
	}
	if u, _ := db.ValidateSession(ctx, s.Token); u != nil {
		t.Error("ended session should not validate")
	}
	if active, _ := db.GetActiveSession(ctx, uid, "ws01"); active != nil {
		t.Errorf("ended session still active: %+v", active)
	}

	s2, err := db.CreateSession(ctx, uid, "ws02")
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := db.ChangeUserPassword(ctx, uid, "rotated!"); err != nil || !ok {
		t.Fatalf("ChangeUserPassword = %v, %v", ok, err)
	}
	if u, _ := db.ValidateSession(ctx, s2.Token); u != nil {
		t.Error("session survived a password change")
	}
	if ok, err := db.ChangeUserPassword(ctx, 9999, "rotated!"); err != nil || ok {
		t.Errorf("ChangeUserPassword(missing) = %v, %v", ok, err)
	}
}

func TestSettingsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.GetSetting(ctx, "preview.max_dim"); err != nil || ok {
		t.Fatalf("GetSetting on missing key = %v, %v", ok, err)
	}

	if err := db.SetSetting(ctx, "preview.max_dim", "512"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := db.SetSetting(ctx, "preview.max_dim", "1024"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}
	if err := db.SetSetting(ctx, "ingest.copy", "hard"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := db.SetSetting(ctx, " ", "x"); err == nil {
		t.Error("expected error for empty key")
	}

	v, ok, err := db.GetSetting(ctx, "preview.max_dim")
	if err != nil || !ok || v != "1024" {
		t.Errorf("GetSetting = %q, %v, %v; want 1024", v, ok, err)
	}

	all, err := db.GetAllSettings(ctx)
	if err != nil {
		t.Fatalf("GetAllSettings failed: %v", err)
	}
	if len(all) != 2 || all[0].Key != "ingest.copy" || all[1].Key != "preview.max_dim" {
		t.Errorf("settings = %+v", all)
	}

	deleted, err := db.DeleteSetting(ctx, "ingest.copy")
	if err != nil || !deleted {
		t.Errorf("DeleteSetting = %v, %v", deleted, err)
	}
}
