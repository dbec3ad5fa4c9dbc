// Package id generates the prefixed identifiers used for every stored entity.
package id

import (
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes.
const (
	PrefixUser   = "user"
	PrefixAuthor = "author"
	PrefixBook   = "book"
	PrefixLoan   = "order"
	PrefixToken  = "token"
)

// labelAlphabet avoids characters that are easy to misread on a printed slip.
const labelAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Generate returns prefix-nanoid, e.g. "book-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// Label returns a human-readable loan label: "order-<unix millis>-<suffix>".
// The suffix keeps labels distinct when two loans start in the same millisecond.
func Label(at time.Time) (string, error) {
	suffix, err := gonanoid.Generate(labelAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generate label suffix: %w", err)
	}
	return PrefixLoan + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + suffix, nil
}
