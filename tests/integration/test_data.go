package integration

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"memberauth/internal/models"
	"memberauth/internal/repositories"
)

// TestMember generates unique member credentials using timestamp
func TestMember(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123@"
	return
}

// CreateTestMember inserts a member with a hashed password and returns it.
// MinCost keeps the hashing fast; strength is not under test here.
func CreateTestMember(ctx context.Context, repo *repositories.MemberRepository, suffix string) (*models.Member, string, error) {
	email, password := TestMember(suffix)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	member, err := repo.Create(ctx, &models.Member{
		Email:              email,
		PasswordHash:       string(hash),
		FirstName:          "Test",
		LastName:           "Member",
		LastPasswordChange: &now,
	})
	if err != nil {
		return nil, "", err
	}
	return member, password, nil
}
