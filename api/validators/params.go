package validators

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

// ParseUUIDParam parses a path parameter into a uuid.
func ParseUUIDParam(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return id, nil
}

// ParseIndexParam parses a zero-based position from the path.
func ParseIndexParam(raw, field string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a non-negative integer").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
