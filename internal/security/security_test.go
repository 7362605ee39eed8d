package security

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, errHash := HashPassword("s3cret-pass")
	if errHash != nil {
		t.Fatalf("HashPassword: %v", errHash)
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Fatalf("wrong password accepted")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, errSign := SignUserToken("secret", 42, "user@example.com", time.Hour)
	if errSign != nil {
		t.Fatalf("SignUserToken: %v", errSign)
	}

	claims, errParse := ParseUserToken("secret", token)
	if errParse != nil {
		t.Fatalf("ParseUserToken: %v", errParse)
	}
	if claims.UserID != 42 || claims.Email != "user@example.com" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, errWrong := ParseUserToken("other-secret", token); !errors.Is(errWrong, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", errWrong)
	}
}

func TestAdminTokenIsNotAUserToken(t *testing.T) {
	token, errSign := SignAdminToken("secret", 1, "root", time.Hour)
	if errSign != nil {
		t.Fatalf("SignAdminToken: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret", token); errParse != nil {
		t.Fatalf("ParseAdminToken: %v", errParse)
	}

	// An admin token carries no user id and must not pass the user parser.
	if _, errCross := ParseUserToken("secret", token); !errors.Is(errCross, ErrInvalidToken) {
		t.Fatalf("admin token accepted as user token: %v", errCross)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, errSign := SignUserToken("secret", 7, "late@example.com", -time.Minute)
	if errSign != nil {
		t.Fatalf("SignUserToken: %v", errSign)
	}
	if _, errParse := ParseUserToken("secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expired token: expected ErrInvalidToken, got %v", errParse)
	}
}
