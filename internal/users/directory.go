package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/lookup"
)

// Directory resolves national ids to display names.
type Directory interface {
	DisplayName(ctx context.Context, nationalID string) (string, error)
}

type userFinder interface {
	FindByNationalID(ctx context.Context, nationalID string) (*models.User, error)
}

type directory struct {
	finder  userFinder
	timeout time.Duration
}

// NewDirectory wraps a finder with a lookup deadline.
func NewDirectory(finder userFinder, timeout time.Duration) (Directory, error) {
	if finder == nil {
		return nil, fmt.Errorf("user finder required")
	}
	return &directory{finder: finder, timeout: timeout}, nil
}

func (d *directory) DisplayName(ctx context.Context, nationalID string) (string, error) {
	return lookup.Do(ctx, d.timeout, "user directory", func(ctx context.Context) (string, error) {
		user, err := d.finder.FindByNationalID(ctx, nationalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", pkgerrors.New(pkgerrors.CodeNotFound, "user not found").
					WithDetails(map[string]any{"national_id": nationalID})
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
		}
		return user.FullName, nil
	})
}
