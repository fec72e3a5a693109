package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewBatchID returns a Monte Carlo batch ID with a timestamp prefix
func NewBatchID() string {
	return fmt.Sprintf("batch-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
