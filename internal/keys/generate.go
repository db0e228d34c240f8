package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultKDFLogN: scrypt N=2^15 para store y key password.
const DefaultKDFLogN = 15

// GenerateOptions describe una entrada nueva del keystore.
type GenerateOptions struct {
	Alias         string
	Alg           string // RS256 (default) | ES256 | EdDSA
	StorePassword string
	KeyPassword   string // vacío => StorePassword
	KDFLogN       int    // 0 => DefaultKDFLogN
}

// Generate crea un par nuevo y lo agrega a existing (nil => keystore nuevo).
// Si existing no es nil, la store password debe validar su MAC.
func Generate(existing []byte, opts GenerateOptions) ([]byte, error) {
	if opts.Alias == "" || opts.StorePassword == "" {
		return nil, errors.New("keys: alias and store password are required")
	}
	if opts.Alg == "" {
		opts.Alg = "RS256"
	}
	if opts.KDFLogN == 0 {
		opts.KDFLogN = DefaultKDFLogN
	}
	keyPassword := opts.KeyPassword
	if keyPassword == "" {
		keyPassword = opts.StorePassword
	}

	st := &storeFile{Version: storeVersion}
	if existing != nil {
		var err error
		if st, err = parseStore(existing); err != nil {
			return nil, err
		}
		if err := st.verify(opts.StorePassword); err != nil {
			return nil, fmt.Errorf("keys: %w", err)
		}
		if _, dup := st.find(opts.Alias); dup {
			return nil, fmt.Errorf("keys: alias %q already exists", opts.Alias)
		}
	}

	priv, err := newPrivateKey(opts.Alg)
	if err != nil {
		return nil, err
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("keys: marshal pkcs8: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("keys: marshal pkix: %w", err)
	}
	sk, err := sealKey(pkcs8, keyPassword, opts.Alias, opts.KDFLogN)
	if err != nil {
		return nil, fmt.Errorf("keys: seal: %w", err)
	}

	st.Entries = append(st.Entries, entry{
		Alias:      opts.Alias,
		Alg:        opts.Alg,
		KID:        thumbprint(pubDER),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		PublicKey:  base64.StdEncoding.EncodeToString(pubDER),
		PrivateKey: sk,
	})
	if err := st.seal(opts.StorePassword, opts.KDFLogN); err != nil {
		return nil, fmt.Errorf("keys: mac: %w", err)
	}
	return yaml.Marshal(st)
}

func newPrivateKey(alg string) (crypto.Signer, error) {
	switch alg {
	case "RS256":
		return rsa.GenerateKey(rand.Reader, 2048)
	case "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "EdDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	default:
		return nil, fmt.Errorf("keys: unknown alg %q", alg)
	}
}

// EntryInfo es la vista pública de una entrada (sin material privado).
type EntryInfo struct {
	Alias     string
	Alg       string
	KID       string
	CreatedAt time.Time
}

// Inspect lista las entradas sin pedir passwords (no valida el MAC).
func Inspect(data []byte) ([]EntryInfo, error) {
	st, err := parseStore(data)
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(st.Entries))
	for _, e := range st.Entries {
		out = append(out, EntryInfo{Alias: e.Alias, Alg: e.Alg, KID: e.KID, CreatedAt: e.CreatedAt})
	}
	return out, nil
}
