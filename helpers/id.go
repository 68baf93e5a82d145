package helpers

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic keeps ids created within the same millisecond increasing
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewIDAt returns a ULID whose timestamp component is t
func NewIDAt(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Only possible when entropy is exhausted within one millisecond
		panic(err)
	}
	return id.String()
}
