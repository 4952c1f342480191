package service

import (
	"math"
	"math/rand/v2"
	"strings"
)

// RandSource supplies uniform draws in [0, n). *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// randomToken draws length characters independently from alphabet.
func randomToken(rnd RandSource, length int, alphabet string) string {
	chars := []rune(alphabet)
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteRune(chars[rnd.IntN(len(chars))])
	}
	return b.String()
}

// TokenSpec shapes the random part of a guest identifier: LetterCount draws
// from Letters followed by DigitCount draws from Digits.
type TokenSpec struct {
	Letters     string
	LetterCount int
	Digits      string
	DigitCount  int
}

func (t TokenSpec) generate(rnd RandSource) string {
	return randomToken(rnd, t.LetterCount, t.Letters) + randomToken(rnd, t.DigitCount, t.Digits)
}

// Size is the number of distinct tokens, saturating at math.MaxInt.
func (t TokenSpec) Size() int {
	size := 1
	mul := func(base, times int) {
		for range times {
			if base != 0 && size > math.MaxInt/base {
				size = math.MaxInt
				return
			}
			size *= base
		}
	}
	mul(len([]rune(t.Letters)), t.LetterCount)
	mul(len([]rune(t.Digits)), t.DigitCount)
	return size
}

// matches reports whether token has the shape t generates.
func (t TokenSpec) matches(token string) bool {
	r := []rune(token)
	if len(r) != t.LetterCount+t.DigitCount {
		return false
	}
	for i, c := range r {
		set := t.Digits
		if i < t.LetterCount {
			set = t.Letters
		}
		if !strings.ContainsRune(set, c) {
			return false
		}
	}
	return true
}
