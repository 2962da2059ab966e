// Package scalar holds the minimal-width integer and phone number encodings.
package scalar

import (
	"math/big"
	"strings"
)

// UintBytes returns the minimal big-endian form of a non-negative integer.
// Zero encodes as a single 0x00 byte.
func UintBytes(v *big.Int) []byte {
	if v == nil || v.Sign() <= 0 {
		return []byte{0}
	}
	return v.Bytes()
}

// BytesUint is the inverse of UintBytes. An empty slice decodes to zero.
func BytesUint(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// SmallUintBytes is UintBytes for values that fit a machine word.
func SmallUintBytes(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte(v)
		v >>= 8
	}
	return append([]byte(nil), buf[i:]...)
}

// BytesSmallUint decodes up to 8 big-endian bytes; ok is false for wider input.
func BytesSmallUint(b []byte) (v uint64, ok bool) {
	if len(b) > 8 {
		return 0, false
	}
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, true
}

// EncodePhone keeps only the digits of a phone number and stores them as an integer.
// Leading zeros are not preserved.
func EncodePhone(phone string) []byte {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return []byte{0}
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return []byte{0}
	}
	return UintBytes(v)
}

// DecodePhone returns the decimal digit string of an encoded phone number.
func DecodePhone(b []byte) string {
	return BytesUint(b).String()
}
