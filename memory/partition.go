package memory

import (
	"fmt"

	"github.com/becomeliminal/mnemo/core"
)

// PartitionKey derives the vector partition name for a (user, session) pair.
//
// This is the isolation guarantee the subsystem exists to enforce: distinct
// pairs must always map to distinct, non-overlapping partitions. IDs are
// restricted to a safe alphabet (letters, digits, dashes) so the joined form
// stays injective; anything else is an isolation violation, not a
// recoverable input error.
func PartitionKey(userID, sessionID string) (string, error) {
	if err := checkID("user id", userID); err != nil {
		return "", err
	}
	if err := checkID("session id", sessionID); err != nil {
		return "", err
	}
	return fmt.Sprintf("user_%s_session_%s", userID, sessionID), nil
}

func checkID(what, id string) error {
	if id == "" {
		return core.Isolationf("empty %s", what)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return core.Isolationf("%s %q contains unsafe character %q", what, id, r)
		}
	}
	return nil
}
