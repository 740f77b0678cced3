package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewToken returns a random one-time match token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// NewMatchID derives a match id from the room id and the start time.
func NewMatchID(roomID string, start time.Time) string {
	return fmt.Sprintf("%s-%d", roomID, start.UnixMilli())
}
