package conn

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// GenerateMID produces a per-frame message id in the service's format:
// a random prefix, the millisecond timestamp, and a trailing " 0".
func GenerateMID() string {
	return fmt.Sprintf("%d%d 0", rand.Intn(1000), time.Now().UnixMilli())
}

// GenerateUUID produces the client uuid attached to outbound chat
// sends: "-<millis>1".
func GenerateUUID() string {
	return fmt.Sprintf("-%d1", time.Now().UnixMilli())
}

// GenerateDeviceID derives a stable-looking device identifier for an
// account: a random v4 uuid suffixed with the account id.
func GenerateDeviceID(userID string) string {
	return uuid.NewString() + "-" + userID
}
