package cryptoprovider

import (
	"crypto/rand"

	"github.com/synerthink/dotlanth/errs"
)

func (defaultProvider) Random(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.New(errs.KindFormat, "negative random length")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, errs.Wrap(errs.KindSecurity, "random failure", err)
	}
	return buf, nil
}
