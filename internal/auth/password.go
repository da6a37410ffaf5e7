package auth

import "golang.org/x/crypto/bcrypt"

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UseMinPasswordCost makes hashing cheap; only for tests.
func UseMinPasswordCost() {
	passwordCost = bcrypt.MinCost
}
