// Package signer implements the epi-hmac request authentication scheme
// used by the deployment API. Every request carries an Authorization
// header of the form:
//
//	epi-hmac <clientKey>:<timestampMillis>:<nonceHex>:<signatureBase64>
//
// The signature is HMAC-SHA256 over clientKey + METHOD + path + timestamp
// + nonce + base64(md5(body)), keyed with the base64-decoded client secret.
package signer

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidClientSecret = errors.New("signer: client secret is not valid base64")
	ErrEmptyClientKey      = errors.New("signer: client key is empty")
)

// Signer produces epi-hmac authorization headers for a key/secret pair.
type Signer struct {
	ClientKey    string
	ClientSecret string // base64 encoded
}

// New validates the credential pair and returns a Signer. The secret is
// checked up front so a malformed credential fails before any network call.
func New(clientKey, clientSecret string) (*Signer, error) {
	if clientKey == "" {
		return nil, ErrEmptyClientKey
	}
	if err := validateSecret(clientSecret); err != nil {
		return nil, err
	}
	return &Signer{ClientKey: clientKey, ClientSecret: clientSecret}, nil
}

// Authorization returns the header value for one request. Timestamp and
// nonce are generated per call, so two signatures over the same input are
// never equal. The server enforces this as anti-replay.
func (s *Signer) Authorization(method, pathAndQuery string, body []byte) (string, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s.authorization(method, pathAndQuery, body, timestamp, nonce)
}

// authorization is the deterministic core: fixed timestamp and nonce give a
// reproducible signature, which is what the tests pin down.
func (s *Signer) authorization(method, pathAndQuery string, body []byte, timestamp, nonce string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(s.ClientSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidClientSecret, err)
	}

	bodyDigest := md5.Sum(body)
	bodyHash := base64.StdEncoding.EncodeToString(bodyDigest[:])

	message := s.ClientKey + strings.ToUpper(method) + pathAndQuery + timestamp + nonce + bodyHash

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("epi-hmac %s:%s:%s:%s", s.ClientKey, timestamp, nonce, signature), nil
}

// validateSecret rejects secrets that cannot be base64: wrong length,
// embedded spaces, or undecodable content. This catches copy/paste
// truncation before the credential is ever used.
func validateSecret(secret string) error {
	if secret == "" || len(secret)%4 != 0 || strings.ContainsAny(secret, " \t\r\n") {
		return ErrInvalidClientSecret
	}
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClientSecret, err)
	}
	return nil
}
