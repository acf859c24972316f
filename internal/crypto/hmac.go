package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// APICreds are the L2 credentials derived from the wallet signature.
type APICreds struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"` // url-safe base64
	Passphrase string `json:"passphrase"`
}

// L2Headers returns the authenticated request headers for the CLOB, signed
// with the current time.
func (c APICreds) L2Headers(address, method, path, body string) map[string]string {
	return c.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt signs timestamp+method+path+body with HMAC-SHA256 keyed by the
// decoded secret.
func (c APICreds) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	mac := hmac.New(sha256.New, decodeSecret(c.Secret))
	mac.Write([]byte(ts + method + path + body))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    c.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": c.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// Valid reports whether all three parts are present.
func (c APICreds) Valid() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// String returns a redacted form for logs.
func (c APICreds) String() string {
	return fmt.Sprintf("APICreds{key=%s, secret=%s}", redact(c.Key), redact(c.Secret))
}

func decodeSecret(s string) []byte {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b
		}
	}
	return []byte(s)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 4)
}
