package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// transferReference correlates both legs of a transfer; unique per call.
func transferReference() string {
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), randomToken(9))
}

func adminReference() string {
	return fmt.Sprintf("ADMIN_%d_%s", time.Now().UnixMilli(), randomToken(6))
}

func randomToken(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		b[i] = tokenAlphabet[idx.Int64()]
	}
	return string(b)
}
