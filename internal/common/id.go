package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewOrderID derives an order identity from the requester email and the
// order timestamp. Format: <email>-MMDDYYYY-HHMMSS.
func NewOrderID(email string, at time.Time) string {
	return fmt.Sprintf("%s-%s", email, at.UTC().Format("01022006-150405"))
}

// ImportedOrderID derives the order identity for an externally-originated
// order. Imports are idempotent because the id is a pure function of the
// external identity.
func ImportedOrderID(email, externalOrderRef string) string {
	return fmt.Sprintf("%s-%s", email, externalOrderRef)
}

// NewRunID generates an opaque id correlating one orchestration pass.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
