package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

type pbkdf2Alg struct{ iter int }

// PBKDF2SHA256 existe para migrar hashes heredados; no es el default.
func PBKDF2SHA256(iterations int) Algorithm {
	if iterations <= 0 {
		iterations = 310000
	}
	return pbkdf2Alg{iter: iterations}
}

func (pbkdf2Alg) ID() string { return "pbkdf2-sha256" }

// Hash devuelve $pbkdf2-sha256$i=...$<saltB64>$<dkB64>
func (a pbkdf2Alg) Hash(plain string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := pbkdf2.Key([]byte(plain), salt, a.iter, 32, sha256.New)
	return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s", a.iter,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

func (pbkdf2Alg) Verify(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return false
	}
	var iter int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &iter); err != nil || iter <= 0 {
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
	got := pbkdf2.Key([]byte(plain), salt, iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
