package signing

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		algorithm Algorithm
		wantErr   bool
		wantAlgo  Algorithm
	}{
		{name: "md5", algorithm: AlgorithmMD5, wantAlgo: AlgorithmMD5},
		{name: "sha256", algorithm: AlgorithmSHA256, wantAlgo: AlgorithmSHA256},
		{name: "empty defaults to md5", algorithm: "", wantAlgo: AlgorithmMD5},
		{name: "unknown algorithm", algorithm: "sha1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.algorithm)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !errors.Is(err, ErrUnknownAlgorithm) {
					t.Errorf("Expected ErrUnknownAlgorithm, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			if s.Algorithm() != tt.wantAlgo {
				t.Errorf("Algorithm() = %q, want %q", s.Algorithm(), tt.wantAlgo)
			}
		})
	}
}

func TestSign_PermutationInvariance(t *testing.T) {
	signer, err := New(AlgorithmMD5)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// Build the same logical set with three different insertion orders.
	orders := [][][2]string{
		{{"app_key", "12345"}, {"keywords", "phone"}, {"page_no", "1"}, {"timestamp", "1700000000000"}},
		{{"timestamp", "1700000000000"}, {"app_key", "12345"}, {"page_no", "1"}, {"keywords", "phone"}},
		{{"page_no", "1"}, {"timestamp", "1700000000000"}, {"keywords", "phone"}, {"app_key", "12345"}},
	}

	signatures := make([]string, 0, len(orders))
	for _, order := range orders {
		params := NewParameterSet()
		for _, kv := range order {
			params.SetString(kv[0], kv[1])
		}
		sig, err := signer.Sign(params, "secret")
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		signatures = append(signatures, sig)
	}

	for i := 1; i < len(signatures); i++ {
		if signatures[i] != signatures[0] {
			t.Errorf("signature[%d] = %s, want %s (insertion order must not matter)", i, signatures[i], signatures[0])
		}
	}
}

func TestSign_Deterministic(t *testing.T) {
	signer, _ := New(AlgorithmSHA256)

	params := ParameterSet{
		"app_key":   "99887766",
		"keywords":  "usb c cable",
		"page_no":   "3",
		"page_size": "20",
		"timestamp": "1699999999999",
	}

	results := make([]string, 10)
	for i := range results {
		sig, err := signer.Sign(params, "app-secret")
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		results[i] = sig
	}

	for i, sig := range results {
		if sig != results[0] {
			t.Errorf("result[%d] = %s, want %s (not deterministic)", i, sig, results[0])
		}
	}
}

// TestSign_CanonicalForm verifies the signature against an independent
// rendering of the secret-sandwich string for both digests.
func TestSign_CanonicalForm(t *testing.T) {
	params := ParameterSet{
		"method":    "product.query",
		"app_key":   "501337",
		"timestamp": "1700000000000",
		"keywords":  "phone case",
	}
	secret := "shh-very-secret"

	// Keys sorted ascending: app_key, keywords, method, timestamp.
	canonical := secret +
		"app_key" + "501337" +
		"keywords" + "phone case" +
		"method" + "product.query" +
		"timestamp" + "1700000000000" +
		secret

	t.Run("md5", func(t *testing.T) {
		signer, _ := New(AlgorithmMD5)
		got, err := signer.Sign(params, secret)
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		sum := md5.Sum([]byte(canonical))
		want := strings.ToUpper(hex.EncodeToString(sum[:]))
		if got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})

	t.Run("sha256", func(t *testing.T) {
		signer, _ := New(AlgorithmSHA256)
		got, err := signer.Sign(params, secret)
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		sum := sha256.Sum256([]byte(canonical))
		want := strings.ToUpper(hex.EncodeToString(sum[:]))
		if got != want {
			t.Errorf("Sign() = %s, want %s", got, want)
		}
	})
}

func TestSign_Format(t *testing.T) {
	upperHex := regexp.MustCompile(`^[0-9A-F]+$`)

	tests := []struct {
		name      string
		algorithm Algorithm
		wantLen   int
	}{
		{name: "md5 is 32 uppercase hex chars", algorithm: AlgorithmMD5, wantLen: 32},
		{name: "sha256 is 64 uppercase hex chars", algorithm: AlgorithmSHA256, wantLen: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, _ := New(tt.algorithm)
			sig, err := signer.Sign(ParameterSet{"k": "v"}, "s")
			if err != nil {
				t.Fatalf("Sign() failed: %v", err)
			}
			if len(sig) != tt.wantLen {
				t.Errorf("len(sig) = %d, want %d", len(sig), tt.wantLen)
			}
			if !upperHex.MatchString(sig) {
				t.Errorf("signature %q is not uppercase hex", sig)
			}
		})
	}
}

func TestSign_Avalanche(t *testing.T) {
	signer, _ := New(AlgorithmMD5)

	base := ParameterSet{
		"app_key":   "1001",
		"keywords":  "headphones",
		"page_no":   "1",
		"timestamp": "1700000000000",
	}
	baseSig, err := signer.Sign(base, "secret")
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(ParameterSet)
	}{
		{name: "value change", mutate: func(p ParameterSet) { p["keywords"] = "headphonez" }},
		{name: "single char in numeric value", mutate: func(p ParameterSet) { p["page_no"] = "2" }},
		{name: "renamed key", mutate: func(p ParameterSet) { delete(p, "page_no"); p["page"] = "1" }},
		{name: "added parameter", mutate: func(p ParameterSet) { p["sort"] = "price_asc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := base.Clone()
			tt.mutate(mutated)
			sig, err := signer.Sign(mutated, "secret")
			if err != nil {
				t.Fatalf("Sign() failed: %v", err)
			}
			if sig == baseSig {
				t.Errorf("signature unchanged after mutation %q", tt.name)
			}
		})
	}

	t.Run("secret change", func(t *testing.T) {
		sig, err := signer.Sign(base, "other-secret")
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		if sig == baseSig {
			t.Error("signature unchanged after secret change")
		}
	})
}

func TestSign_EmptyParameterName(t *testing.T) {
	signer, _ := New(AlgorithmMD5)

	_, err := signer.Sign(ParameterSet{"": "value", "k": "v"}, "secret")
	if err == nil {
		t.Fatal("Expected error for empty parameter name")
	}
	if !errors.Is(err, ErrUnsignableParameter) {
		t.Errorf("Expected ErrUnsignableParameter, got %v", err)
	}
}

func TestParameterSet_SetFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		want    string
		wantErr bool
	}{
		{name: "integral float renders without decimals", value: 10, want: "10"},
		{name: "fractional float renders shortest form", value: 1.5, want: "1.5"},
		{name: "small fraction", value: 0.99, want: "0.99"},
		{name: "NaN rejected", value: math.NaN(), wantErr: true},
		{name: "positive infinity rejected", value: math.Inf(1), wantErr: true},
		{name: "negative infinity rejected", value: math.Inf(-1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := NewParameterSet()
			err := params.SetFloat("price", tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !errors.Is(err, ErrUnsignableParameter) {
					t.Errorf("Expected ErrUnsignableParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetFloat() failed: %v", err)
			}
			if got := params["price"]; got != tt.want {
				t.Errorf("params[price] = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParameterSet_Clone(t *testing.T) {
	original := ParameterSet{"a": "1", "b": "2"}
	clone := original.Clone()

	clone["a"] = "changed"
	clone["c"] = "3"

	if original["a"] != "1" {
		t.Errorf("original mutated through clone: a = %q", original["a"])
	}
	if _, ok := original["c"]; ok {
		t.Error("original gained key added to clone")
	}
}
