package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

type scryptAlg struct {
	logN   int
	r, p   int
	keyLen int
}

// Scrypt usa N=2^15, r=8, p=1 (recomendación OWASP).
func Scrypt() Algorithm { return scryptAlg{logN: 15, r: 8, p: 1, keyLen: 32} }

func (scryptAlg) ID() string { return "scrypt" }

// Hash devuelve $scrypt$ln=..,r=..,p=..$<saltB64>$<dkB64>
func (s scryptAlg) Hash(plain string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk, err := scrypt.Key([]byte(plain), salt, 1<<s.logN, s.r, s.p, s.keyLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s", s.logN, s.r, s.p,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

func (scryptAlg) Verify(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "scrypt" {
		return false
	}
	var logN, r, p int
	if _, err := fmt.Sscanf(parts[2], "ln=%d,r=%d,p=%d", &logN, &r, &p); err != nil {
		return false
	}
	if logN < 1 || logN > 20 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}
	got, err := scrypt.Key([]byte(plain), salt, 1<<logN, r, p, len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
