package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("bad credentials")

// HashPassword bcrypt 默认 cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckBasic 校验 basic auth 用户名与 bcrypt 密码
func CheckBasic(wantUser, wantHash, user, password string) error {
	if wantHash == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(wantUser), []byte(user)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(wantHash), []byte(password)); err != nil || !userOK {
		return ErrBadCredentials
	}
	return nil
}
