package types

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier like "trade_4f1c2b9a03de".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
