// Package random produces the short identifiers the marketplace hands to
// third parties: human-readable order references and oauth state nonces.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand"
	"time"
)

const (
	charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// refCharset has no lowercase: references end up on invoices and in
	// support emails, where case is routinely lost.
	refCharset = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

func init() {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		mrand.Seed(time.Now().UnixNano())
		return
	}
	mrand.Seed(int64(binary.LittleEndian.Uint64(b[:])))
}

func pick(charset string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[mrand.Intn(len(charset))]
	}
	return string(b)
}

func String(length int) string {
	return pick(charset, length)
}

// Reference builds an order reference: uppercase, unambiguous, safe to read
// over the phone.
func Reference(length int) string {
	return pick(refCharset, length)
}

// StringSecure draws from crypto/rand for values that guard something, like
// oauth state.
func StringSecure(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		l := big.NewInt(int64(len(charset)))
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
