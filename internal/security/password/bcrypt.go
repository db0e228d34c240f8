package password

import "golang.org/x/crypto/bcrypt"

type bcryptAlg struct{ cost int }

// Bcrypt crea el algoritmo con el costo dado (bcrypt.DefaultCost si cost <= 0).
func Bcrypt(cost int) Algorithm {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return bcryptAlg{cost: cost}
}

func (bcryptAlg) ID() string { return "bcrypt" }

func (b bcryptAlg) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify: CompareHashAndPassword ya compara en tiempo constante.
func (bcryptAlg) Verify(plain, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
}
