package exchange

import (
	"testing"
	"time"
)

const (
	testSecret = "dGVzdC1obWFjLWtleS0wMTIzNDU2Nzg5YWJjZGVm" // base64("test-hmac-key-0123456789abcdef")
	testBody   = `{"type":"market","side":"buy","product_id":"BTC-USD","funds":"10.00"}`
)

func fixedSigner(apiKey, secret, passphrase string, unix int64) *Signer {
	s := NewSigner(apiKey, secret, passphrase)
	s.now = func() time.Time { return time.Unix(unix, 0) }
	return s
}

func TestHeadersSignatureIsDeterministic(t *testing.T) {
	s := fixedSigner("key", testSecret, "phrase", 1700000000)

	headers, err := s.Headers("POST", "/orders", testBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reference value computed independently with the Coinbase Exchange
	// scheme: base64(HMAC-SHA256(b64decode(secret), ts+METHOD+path+body)).
	const want = "mrAlnhi2ykGu8C8sxqz4hAssJIgwp/fSU1DA8qhY5IQ="
	if headers["CB-ACCESS-SIGN"] != want {
		t.Fatalf("signature mismatch:\nwant %s\ngot  %s", want, headers["CB-ACCESS-SIGN"])
	}
	if headers["CB-ACCESS-KEY"] != "key" {
		t.Fatalf("unexpected api key header: %q", headers["CB-ACCESS-KEY"])
	}
	if headers["CB-ACCESS-TIMESTAMP"] != "1700000000" {
		t.Fatalf("unexpected timestamp header: %q", headers["CB-ACCESS-TIMESTAMP"])
	}
	if headers["CB-ACCESS-PASSPHRASE"] != "phrase" {
		t.Fatalf("unexpected passphrase header: %q", headers["CB-ACCESS-PASSPHRASE"])
	}
	if headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected content type: %q", headers["Content-Type"])
	}
}

func TestHeadersMethodIsUppercased(t *testing.T) {
	upper := fixedSigner("key", testSecret, "phrase", 1700000000)
	lower := fixedSigner("key", testSecret, "phrase", 1700000000)

	a, err := upper.Headers("POST", "/orders", testBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := lower.Headers("post", "/orders", testBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a["CB-ACCESS-SIGN"] != b["CB-ACCESS-SIGN"] {
		t.Fatal("lower-case method should sign identically to upper-case")
	}
}

func TestHeadersRejectsInvalidBase64Secret(t *testing.T) {
	s := NewSigner("key", "not base64!!!", "phrase")
	if _, err := s.Headers("POST", "/orders", ""); err == nil {
		t.Fatal("expected error for non-base64 secret")
	}
}
