package consignment

import (
	"errors"
	"fmt"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
)

// notFoundAs turns a repository ErrNotFound into a specific not-found error
func notFoundAs(err error, code, entity string, id uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewNotFoundError(code, fmt.Sprintf("%s %s not found", entity, id))
	}
	return err
}
