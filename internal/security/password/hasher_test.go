package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cheap mantiene los tests rápidos; el formato es el mismo que en prod.
var cheap = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Argon2id(cheap), Bcrypt(4), scryptAlg{logN: 4, r: 8, p: 1, keyLen: 32}, PBKDF2SHA256(1000))
	require.NoError(t, err)
	return h
}

func TestHashVerify_DefaultAlgorithm(t *testing.T) {
	h := testHasher(t)
	enc, err := h.Hash("s3cr3t")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(enc, "{argon2id}$argon2id$v=19$"))
	require.True(t, h.Verify("s3cr3t", enc))
	require.False(t, h.Verify("s3cr3T", enc))
	require.NotContains(t, enc, "s3cr3t")
}

func TestVerify_DispatchesByPrefix(t *testing.T) {
	h := testHasher(t)
	for _, alg := range []Algorithm{Bcrypt(4), scryptAlg{logN: 4, r: 8, p: 1, keyLen: 32}, PBKDF2SHA256(1000)} {
		t.Run(alg.ID(), func(t *testing.T) {
			raw, err := alg.Hash("pw")
			require.NoError(t, err)
			enc := "{" + alg.ID() + "}" + raw
			require.True(t, h.Verify("pw", enc))
			require.False(t, h.Verify("other", enc))
			require.True(t, h.NeedsRehash(enc))
		})
	}
}

func TestVerify_UnknownOrBrokenIsFalse(t *testing.T) {
	h := testHasher(t)
	enc, err := h.Hash("pw")
	require.NoError(t, err)
	_, rest, _ := splitID(enc)

	cases := map[string]string{
		"unknown id":     "{md4}" + rest,
		"no prefix":      rest,
		"empty":          "",
		"empty id":       "{}" + rest,
		"unterminated":   "{argon2id" + rest,
		"truncated":      enc[:len(enc)-10],
		"noop plaintext": "{noop}pw",
	}
	for name, in := range cases {
		if h.Verify("pw", in) {
			t.Fatalf("%s: expected false", name)
		}
	}
}

func TestHash_EmptyRejected(t *testing.T) {
	_, err := testHasher(t).Hash("")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestNeedsRehash_ArgonParams(t *testing.T) {
	h := testHasher(t)
	enc, err := h.Hash("pw")
	require.NoError(t, err)
	require.False(t, h.NeedsRehash(enc))

	stronger, err := NewHasher(Argon2id(Params{Memory: 2048, Time: 1, Parallelism: 1, KeyLen: 32}))
	require.NoError(t, err)
	require.True(t, stronger.NeedsRehash(enc))
	require.True(t, stronger.Verify("pw", enc), "old params must still verify")
}

func TestNewHasher_DuplicateID(t *testing.T) {
	_, err := NewHasher(Bcrypt(4), Bcrypt(5))
	require.Error(t, err)
}

func TestPolicyCheck(t *testing.T) {
	p := Policy{MinLength: 12, RequireUpper: true, RequireDigit: true}
	require.NoError(t, p.Check("Abcdefghijk1"))

	err := p.Check("short")
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, []string{"too_short", "missing_upper", "missing_digit"}, pe.Reasons)
	require.NoError(t, Policy{}.Check(""))
}
