package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
)

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
	// EC / OKP
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública) en JSON.
func (m *Material) JWKSJSON() []byte {
	k := jwk{Kid: m.kid, Alg: m.Algorithm(), Use: "sig"}
	b64 := base64.RawURLEncoding.EncodeToString
	switch pub := m.pub.(type) {
	case *rsa.PublicKey:
		k.Kty = "RSA"
		k.N = b64(pub.N.Bytes())
		k.E = b64(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		k.Kty = "EC"
		k.Crv = "P-256"
		size := (pub.Curve.Params().BitSize + 7) / 8
		k.X = b64(pub.X.FillBytes(make([]byte, size)))
		k.Y = b64(pub.Y.FillBytes(make([]byte, size)))
	case ed25519.PublicKey:
		k.Kty = "OKP"
		k.Crv = "Ed25519"
		k.X = b64(pub)
	}
	b, _ := json.Marshal(jwks{Keys: []jwk{k}})
	return b
}

// thumbprint: sha256 del PKIX DER, truncado. Alcanza como kid estable.
func thumbprint(pubDER []byte) string {
	sum := sha256.Sum256(pubDER)
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
