package id

import (
	crand "crypto/rand"
	"fmt"
	"sync"

	"github.com/benz9527/xset/lib/infra"
)

// 64 url-safe chars, a random byte masked by 0x3f picks one without bias.
const (
	nanoIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	nanoIDMask     = len(nanoIDAlphabet) - 1
	nanoIDBatch    = 64
)

// NanoID returns a generator of fixed length random ids. The random bytes
// for nanoIDBatch ids are read at once and refilled after use up.
func NanoID(length int) (NanoIDGen, error) {
	if length < 2 || length > 255 {
		return nil, infra.NewErrorStack(fmt.Sprintf("[nano-id] invalid length %d, it should be in [2, 255]", length))
	}

	pool := make([]byte, length*nanoIDBatch)
	if _, err := crand.Read(pool); err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[nano-id] read random bytes")
	}
	offset := 0

	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()

		if offset == len(pool) {
			if _, err := crand.Read(pool); err != nil {
				// crypto/rand never fails on the supported platforms.
				panic(infra.WrapErrorStackWithMessage(err, "[nano-id] refill random bytes"))
			}
			offset = 0
		}
		id := make([]byte, length)
		for i, b := range pool[offset : offset+length] {
			id[i] = nanoIDAlphabet[int(b)&nanoIDMask]
		}
		offset += length
		return string(id)
	}, nil
}
