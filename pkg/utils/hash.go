package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when an admin password is blank.
var ErrEmptyPassword = errors.New("admin password must not be empty")

// AdminPasswordCost is the bcrypt cost for stored admin credentials.
// Tests lower it to bcrypt.MinCost.
var AdminPasswordCost = bcrypt.DefaultCost

// HashAdminPassword hashes an admin's sign-in password for the admins table.
// Passwords longer than 72 bytes are rejected by bcrypt.
func HashAdminPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), AdminPasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdminPassword reports whether plain matches the stored admin hash.
// A blank stored hash never matches.
func CheckAdminPassword(plain, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
