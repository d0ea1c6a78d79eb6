// Package id generates client order ids.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxLength is the longest newClientOrderId the exchange accepts.
const MaxLength = 36

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID. Ids from one process sort in generation order.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ClientOrderID returns prefix followed by a ULID, truncating prefix so the
// result fits MaxLength.
func ClientOrderID(prefix string) string {
	id := New()
	if room := MaxLength - len(id); len(prefix) > room {
		prefix = prefix[:room]
	}
	return prefix + id
}
