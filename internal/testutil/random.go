package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// RandomString returns a prefixed unique string for test fixtures.
func RandomString(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// RandomEmail returns a unique email address for test fixtures.
func RandomEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}
