package futures

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"futurex/pkg/core"
)

// Signer produces the HMAC-SHA256 signature of an encoded parameter list.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex signature over params.Encode(). Empty params or an
// empty secret is a signing_error. The caller appends the result as the
// final "signature" parameter.
func (s *Signer) Sign(params core.Params) (string, error) {
	if len(s.secret) == 0 {
		return "", core.NewSigningError("secret key is empty")
	}
	if len(params) == 0 {
		return "", core.NewSigningError("nothing to sign")
	}
	return signHMAC(params.Encode(), s.secret), nil
}

func signHMAC(message string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
