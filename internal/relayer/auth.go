package relayer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
)

// BuilderCredentials authenticate requests to the builder relayer.
type BuilderCredentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// Valid reports whether every credential is present.
func (b BuilderCredentials) Valid() bool {
	return b.Key != "" && b.Secret != "" && b.Passphrase != ""
}

// decodeSecret returns the HMAC key behind the base64 secret. Builder
// secrets are URL-safe base64; standard and unpadded forms are accepted too.
func (b BuilderCredentials) decodeSecret() ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	}
	for _, enc := range encodings {
		secret, err := enc.DecodeString(b.Secret)
		if err == nil {
			return secret, nil
		}
	}
	return nil, fmt.Errorf("builder secret is not base64")
}

// headers returns the builder headers for a request issued at unixTS.
// The signature is urlsafe_base64(HMAC-SHA256(secret, ts+method+path+body))
// keyed with the decoded secret.
func (b BuilderCredentials) headers(secret []byte, method, path, body string, unixTS int64) http.Header {
	ts := strconv.FormatInt(unixTS, 10)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + method + path + body))

	h := make(http.Header)
	h.Set("POLY_BUILDER_API_KEY", b.Key)
	h.Set("POLY_BUILDER_TIMESTAMP", ts)
	h.Set("POLY_BUILDER_PASSPHRASE", b.Passphrase)
	h.Set("POLY_BUILDER_SIGNATURE", base64.URLEncoding.EncodeToString(mac.Sum(nil)))
	return h
}

// String redacts the credentials for logging.
func (b BuilderCredentials) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return "BuilderCredentials{key=" + redact(b.Key) + "}"
}
