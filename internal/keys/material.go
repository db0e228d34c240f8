package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// KeyStoreSource es lo que entrega la configuración: bytes del keystore + secretos.
// KeyPassword vacío => se usa StorePassword (mismo password para store y clave).
type KeyStoreSource struct {
	Data          []byte
	StorePassword string
	Alias         string
	KeyPassword   string
}

// FileSource lee el keystore desde disco. Un archivo ilegible también es KeyLoadError.
func FileSource(path, storePassword, alias, keyPassword string) (KeyStoreSource, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return KeyStoreSource{}, loadErr(alias, "read keystore", err)
	}
	return KeyStoreSource{Data: b, StorePassword: storePassword, Alias: alias, KeyPassword: keyPassword}, nil
}

// Material es el par de claves de firma. Inmutable: seguro para uso concurrente sin locks.
type Material struct {
	alias  string
	kid    string
	method jwtv5.SigningMethod
	priv   crypto.Signer
	pub    crypto.PublicKey
}

// Load abre el keystore y devuelve el material del alias pedido. Cualquier fallo es
// *KeyLoadError: alias ausente, store password incorrecta, key password incorrecta,
// o clave incompatible con el algoritmo declarado.
func Load(src KeyStoreSource) (*Material, error) {
	alias := src.Alias
	if alias == "" {
		return nil, loadErr(alias, "alias is required", nil)
	}
	st, err := parseStore(src.Data)
	if err != nil {
		return nil, loadErr(alias, "malformed keystore", err)
	}
	if err := st.verify(src.StorePassword); err != nil {
		return nil, loadErr(alias, "wrong store password or tampered keystore", err)
	}
	e, ok := st.find(alias)
	if !ok {
		return nil, loadErr(alias, "alias not found", nil)
	}

	keyPassword := src.KeyPassword
	if keyPassword == "" {
		keyPassword = src.StorePassword
	}
	der, err := openKey(e.PrivateKey, keyPassword, alias)
	if err != nil {
		return nil, loadErr(alias, "wrong key password", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, loadErr(alias, "parse private key", err)
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, loadErr(alias, "private key cannot sign", nil)
	}

	pubDER, err := base64.StdEncoding.DecodeString(e.PublicKey)
	if err != nil {
		return nil, loadErr(alias, "decode public key", err)
	}
	pub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, loadErr(alias, "parse public key", err)
	}
	if eq, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool }); !ok || !eq.Equal(pub) {
		return nil, loadErr(alias, "public key does not match private key", nil)
	}

	method, err := methodFor(e.Alg, signer)
	if err != nil {
		return nil, loadErr(alias, "unsupported key", err)
	}

	kid := e.KID
	if kid == "" {
		kid = thumbprint(pubDER)
	}
	return &Material{alias: alias, kid: kid, method: method, priv: signer, pub: pub}, nil
}

// methodFor valida que el tipo de clave corresponda al alg declarado.
func methodFor(alg string, k crypto.Signer) (jwtv5.SigningMethod, error) {
	switch alg {
	case "RS256":
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("RS256 requires an RSA key")
		}
		if rk.N.BitLen() < 2048 {
			return nil, fmt.Errorf("RSA key too small: %d bits", rk.N.BitLen())
		}
		return jwtv5.SigningMethodRS256, nil
	case "ES256":
		ek, ok := k.(*ecdsa.PrivateKey)
		if !ok || ek.Curve != elliptic.P256() {
			return nil, errors.New("ES256 requires a P-256 key")
		}
		return jwtv5.SigningMethodES256, nil
	case "EdDSA":
		if _, ok := k.(ed25519.PrivateKey); !ok {
			return nil, errors.New("EdDSA requires an Ed25519 key")
		}
		return jwtv5.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("unknown alg %q", alg)
	}
}

// Sign firma data (el signing input del JWT).
func (m *Material) Sign(data []byte) ([]byte, error) {
	return m.method.Sign(string(data), m.priv)
}

// Verify chequea la firma con la clave pública.
func (m *Material) Verify(data, sig []byte) bool {
	return m.method.Verify(string(data), sig, m.pub) == nil
}

func (m *Material) Alias() string { return m.alias }
func (m *Material) KeyID() string { return m.kid }
func (m *Material) Algorithm() string { return m.method.Alg() }
func (m *Material) Method() jwtv5.SigningMethod { return m.method }
func (m *Material) PublicKey() crypto.PublicKey { return m.pub }

// PublicKeyPEM es lo que expone /oauth/token_key.
func (m *Material) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(m.pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
