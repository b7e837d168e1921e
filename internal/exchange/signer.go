package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer computes Coinbase Exchange authentication headers. The signature
// covers timestamp + METHOD + path + body, keyed by the base64-decoded API
// secret, and must be produced with a current timestamp: the exchange
// rejects requests outside its clock-skew window.
type Signer struct {
	apiKey     string
	secret     string
	passphrase string
	now        func() time.Time
}

// NewSigner constructs a Signer from Coinbase API credentials.
func NewSigner(apiKey, secret, passphrase string) *Signer {
	return &Signer{
		apiKey:     apiKey,
		secret:     secret,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// Headers returns the header set for one request. It fails only when the
// configured secret is not valid base64.
func (s *Signer) Headers(method, requestPath, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	signature, err := s.sign(timestamp, method, requestPath, body)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"CB-ACCESS-KEY":        s.apiKey,
		"CB-ACCESS-SIGN":       signature,
		"CB-ACCESS-TIMESTAMP":  timestamp,
		"CB-ACCESS-PASSPHRASE": s.passphrase,
		"Content-Type":         "application/json",
	}, nil
}

func (s *Signer) sign(timestamp, method, requestPath, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(s.secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	message := timestamp + strings.ToUpper(method) + requestPath + body
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
