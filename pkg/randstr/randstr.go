package randstr

import (
	"crypto/rand"
	"math/big"
)

// Generator produces random strings over a fixed alphabet, suitable for
// secrets such as update passwords.
type Generator struct {
	alphabet []byte
}

func New(alphabet []byte) *Generator {
	return &Generator{alphabet: alphabet}
}

func (g *Generator) GenerateRandomString(length int) string {
	max := big.NewInt(int64(len(g.alphabet)))

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = g.alphabet[n.Int64()]
	}
	return string(b)
}
