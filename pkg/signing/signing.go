// Package signing implements the canonical request signature every outbound
// marketplace call must carry.
//
// The procedure is the gateway's "secret sandwich": sort all request
// parameters by name, concatenate secret + name1 + value1 + ... + secret
// with no separators, hash the UTF-8 bytes, render uppercase hex. The
// gateway's documentation describes the same procedure with two different
// digests (MD5 in the signing guide, SHA-256 in newer console snippets), so
// the digest is explicit configuration here rather than a constant; use the
// one your app credentials were provisioned for.
package signing

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Algorithm selects the digest used for request signing.
type Algorithm string

const (
	// AlgorithmMD5 is the gateway's default signing digest (32 hex chars).
	AlgorithmMD5 Algorithm = "md5"

	// AlgorithmSHA256 is the alternative digest (64 hex chars).
	AlgorithmSHA256 Algorithm = "sha256"
)

var (
	// ErrUnsignableParameter indicates a parameter that cannot be rendered
	// into the canonical signing string.
	ErrUnsignableParameter = errors.New("unsignable parameter")

	// ErrUnknownAlgorithm indicates an unsupported signing digest.
	ErrUnknownAlgorithm = errors.New("unknown signing algorithm")
)

// ParameterSet holds the request fields subject to canonical signing.
// Keys are unique by construction; insertion order is irrelevant because
// Sign canonicalizes by sorting.
type ParameterSet map[string]string

// NewParameterSet returns an empty parameter set.
func NewParameterSet() ParameterSet {
	return make(ParameterSet)
}

// SetString stores a string parameter.
func (p ParameterSet) SetString(key, value string) {
	p[key] = value
}

// SetInt stores an integer parameter in canonical decimal form.
func (p ParameterSet) SetInt(key string, value int64) {
	p[key] = strconv.FormatInt(value, 10)
}

// SetFloat stores a float parameter in canonical form (shortest exact
// decimal). Non-finite values cannot appear on the wire and fail with
// ErrUnsignableParameter.
func (p ParameterSet) SetFloat(key string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrUnsignableParameter, key)
	}
	p[key] = strconv.FormatFloat(value, 'f', -1, 64)
	return nil
}

// Clone returns an independent copy of the set.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Signer produces deterministic signatures for outbound marketplace calls.
// The zero value is not usable; construct with New.
type Signer struct {
	algorithm Algorithm
}

// New creates a Signer for the given algorithm. An empty algorithm selects
// MD5, the gateway default.
func New(algorithm Algorithm) (*Signer, error) {
	switch algorithm {
	case AlgorithmMD5, AlgorithmSHA256:
		return &Signer{algorithm: algorithm}, nil
	case "":
		return &Signer{algorithm: AlgorithmMD5}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// Algorithm returns the configured digest.
func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

// Method returns the wire value for the sign_method protocol field.
func (s *Signer) Method() string {
	return string(s.algorithm)
}

// Sign computes the signature for params under secret.
//
// Sign is a pure function: identical (params, secret) always produce the
// identical signature, and parameter insertion order never affects the
// result. The empty parameter name is rejected because it cannot appear in
// the gateway's canonical form.
func (s *Signer) Sign(params ParameterSet, secret string) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "" {
			return "", fmt.Errorf("%w: empty parameter name", ErrUnsignableParameter)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	h := s.newHash()
	h.Write([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

func (s *Signer) newHash() hash.Hash {
	if s.algorithm == AlgorithmSHA256 {
		return sha256.New()
	}
	return md5.New()
}
