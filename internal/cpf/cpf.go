// Package cpf handles Brazilian taxpayer numbers, which identify patients in
// the chat.
package cpf

import (
	"errors"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

var (
	ErrMissing = errors.New("cpf is required")
	ErrInvalid = errors.New("cpf is invalid")
)

// Normalize drops punctuation so "111.444.777-35" and "11144477735" are the
// same patient.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse normalizes raw and checks its length and check digits.
func Parse(raw string) (string, error) {
	digits := Normalize(raw)
	if digits == "" {
		return "", ErrMissing
	}
	if !Valid(digits) {
		return "", ErrInvalid
	}
	return digits, nil
}

// Valid reports whether digits is an 11-digit CPF with correct check digits.
// Repeated-digit numbers such as 00000000000 pass the arithmetic but are not
// issued, so they are rejected.
func Valid(digits string) bool {
	if len(digits) != 11 {
		return false
	}
	d := make([]int, 11)
	same := true
	for i, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
		d[i] = int(r - '0')
		if d[i] != d[0] {
			same = false
		}
	}
	if same {
		return false
	}
	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

func checkDigit(d []int) int {
	sum := 0
	weight := len(d) + 1
	for _, v := range d {
		sum += v * weight
		weight--
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// Generate returns a random valid CPF. Used by the seed and simulate tools.
func Generate(f *gofakeit.Faker) string {
	d := make([]int, 11)
	for {
		for i := 0; i < 9; i++ {
			d[i] = f.Number(0, 9)
		}
		d[9] = checkDigit(d[:9])
		d[10] = checkDigit(d[:10])

		var b strings.Builder
		for _, v := range d {
			b.WriteByte(byte('0' + v))
		}
		if out := b.String(); Valid(out) {
			return out
		}
	}
}

// Format renders digits as 000.000.000-00.
func Format(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}
