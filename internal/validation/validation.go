// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"unicode"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// IsValidUsername проверяет, что имя пользователя состоит из латинских букв,
// цифр, точек, дефисов и подчёркиваний и имеет допустимую длину.
func IsValidUsername(username string) bool {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return false
	}

	for _, ch := range username {
		if ch > unicode.MaxASCII {
			return false
		}
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			continue
		}
		switch ch {
		case '.', '-', '_':
		default:
			return false
		}
	}

	return true
}

// IsValidEmail проверяет, что строка является одним адресом без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	return addr.Address == email && addr.Name == ""
}
