// Package keys carga el par de claves de firma desde un keystore protegido.
//
// Formato del keystore (YAML):
//
//	version: 1
//	entries:
//	  - alias: auth-signing
//	    alg: RS256            # RS256 | ES256 | EdDSA
//	    kid: <thumbprint>
//	    public_key: <base64 PKIX DER>
//	    private_key:          # PKCS#8 DER sellado con AES-256-GCM
//	      kdf: {ln: 15, r: 8, p: 1, salt: <b64>}   # scrypt(key password)
//	      nonce: <b64>
//	      ciphertext: <b64>
//	mac:                      # HMAC-SHA256 de las entries, clave = scrypt(store password)
//	  kdf: {...}
//	  value: <b64>
//
// Igual que un JKS, la store password protege la integridad del archivo y la key
// password (que puede ser distinta) abre la clave privada de cada alias.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/scrypt"
	"gopkg.in/yaml.v3"
)

const (
	storeVersion = 1
	gcmNonceSize = 12 // 96 bits
	aesKeyLen    = 32 // AES-256
	saltLen      = 16
)

type storeFile struct {
	Version int        `yaml:"version" json:"version"`
	Entries []entry    `yaml:"entries" json:"entries"`
	MAC     *sealedMAC `yaml:"mac,omitempty" json:"-"`
}

type entry struct {
	Alias      string    `yaml:"alias" json:"alias"`
	Alg        string    `yaml:"alg" json:"alg"`
	KID        string    `yaml:"kid" json:"kid"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`
	PublicKey  string    `yaml:"public_key" json:"public_key"`
	PrivateKey sealed    `yaml:"private_key" json:"private_key"`
}

type kdfParams struct {
	LogN int    `yaml:"ln" json:"ln"`
	R    int    `yaml:"r" json:"r"`
	P    int    `yaml:"p" json:"p"`
	Salt string `yaml:"salt" json:"salt"`
}

type sealed struct {
	KDF        kdfParams `yaml:"kdf" json:"kdf"`
	Nonce      string    `yaml:"nonce" json:"nonce"`
	Ciphertext string    `yaml:"ciphertext" json:"ciphertext"`
}

type sealedMAC struct {
	KDF   kdfParams `yaml:"kdf"`
	Value string    `yaml:"value"`
}

func newKDF(logN int) (kdfParams, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return kdfParams{}, err
	}
	return kdfParams{LogN: logN, R: 8, P: 1, Salt: base64.StdEncoding.EncodeToString(salt)}, nil
}

func (k kdfParams) derive(password string) ([]byte, error) {
	if k.LogN < 1 || k.LogN > 20 || k.R <= 0 || k.P <= 0 {
		return nil, errors.New("invalid kdf parameters")
	}
	salt, err := base64.StdEncoding.DecodeString(k.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	return scrypt.Key([]byte(password), salt, 1<<k.LogN, k.R, k.P, aesKeyLen)
}

// canonical es la forma firmada por el MAC: JSON de version+entries (orden fijo de struct).
func (s *storeFile) canonical() ([]byte, error) {
	return json.Marshal(struct {
		Version int     `json:"version"`
		Entries []entry `json:"entries"`
	}{s.Version, s.Entries})
}

func (s *storeFile) computeMAC(key []byte) ([]byte, error) {
	msg, err := s.canonical()
	if err != nil {
		return nil, err
	}
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil), nil
}

func (s *storeFile) seal(storePassword string, logN int) error {
	kdf, err := newKDF(logN)
	if err != nil {
		return err
	}
	key, err := kdf.derive(storePassword)
	if err != nil {
		return err
	}
	sum, err := s.computeMAC(key)
	if err != nil {
		return err
	}
	s.MAC = &sealedMAC{KDF: kdf, Value: base64.StdEncoding.EncodeToString(sum)}
	return nil
}

// verify chequea integridad con la store password (hmac.Equal es tiempo constante).
func (s *storeFile) verify(storePassword string) error {
	if s.MAC == nil {
		return errors.New("missing mac")
	}
	key, err := s.MAC.KDF.derive(storePassword)
	if err != nil {
		return err
	}
	want, err := base64.StdEncoding.DecodeString(s.MAC.Value)
	if err != nil {
		return fmt.Errorf("decode mac: %w", err)
	}
	got, err := s.computeMAC(key)
	if err != nil {
		return err
	}
	if !hmac.Equal(got, want) {
		return errors.New("integrity check failed")
	}
	return nil
}

func parseStore(data []byte) (*storeFile, error) {
	var s storeFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if s.Version != storeVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", s.Version)
	}
	return &s, nil
}

func (s *storeFile) find(alias string) (*entry, bool) {
	for i := range s.Entries {
		if s.Entries[i].Alias == alias {
			return &s.Entries[i], true
		}
	}
	return nil, false
}

// sealKey cifra el PKCS#8 con AES-GCM; el alias va como AAD para que no se pueda
// mover una clave sellada a otro alias.
func sealKey(pkcs8 []byte, keyPassword, alias string, logN int) (sealed, error) {
	kdf, err := newKDF(logN)
	if err != nil {
		return sealed{}, err
	}
	key, err := kdf.derive(keyPassword)
	if err != nil {
		return sealed{}, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return sealed{}, err
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return sealed{}, fmt.Errorf("nonce random: %w", err)
	}
	ct := gcm.Seal(nil, nonce, pkcs8, []byte(alias))
	return sealed{
		KDF:        kdf,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}, nil
}

func openKey(s sealed, keyPassword, alias string) ([]byte, error) {
	key, err := s.KDF.derive(keyPassword)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(s.Nonce)
	if err != nil || len(nonce) != gcmNonceSize {
		return nil, errors.New("invalid nonce")
	}
	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	pt, err := gcm.Open(nil, nonce, ct, []byte(alias))
	if err != nil {
		return nil, errors.New("gcm auth/decrypt failed")
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
