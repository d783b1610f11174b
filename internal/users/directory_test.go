package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

type stubFinder struct {
	findFn func(ctx context.Context, nationalID string) (*models.User, error)
}

func (s stubFinder) FindByNationalID(ctx context.Context, nationalID string) (*models.User, error) {
	return s.findFn(ctx, nationalID)
}

func TestDirectoryDisplayName(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateUserDTO{NationalID: "12.345.678-k", FullName: " Carla Soto ", Role: enums.RoleTesorera})
	require.NoError(t, err)

	dir, err := NewDirectory(repo, time.Second)
	require.NoError(t, err)

	name, err := dir.DisplayName(ctx, "12345678-K")
	require.NoError(t, err)
	require.Equal(t, "Carla Soto", name)

	_, err = dir.DisplayName(ctx, "99999999-9")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	require.NoError(t, repo.Deactivate(ctx, "12345678-K"))
	_, err = dir.DisplayName(ctx, "12345678-K")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestDirectoryMapsFailures(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		dir, err := NewDirectory(stubFinder{findFn: func(context.Context, string) (*models.User, error) {
			return nil, errors.New("connection reset")
		}}, time.Second)
		require.NoError(t, err)

		_, err = dir.DisplayName(context.Background(), "1-9")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	})

	t.Run("slow lookup", func(t *testing.T) {
		dir, err := NewDirectory(stubFinder{findFn: func(ctx context.Context, _ string) (*models.User, error) {
			<-ctx.Done()
			return nil, gorm.ErrInvalidTransaction
		}}, 20*time.Millisecond)
		require.NoError(t, err)

		_, err = dir.DisplayName(context.Background(), "1-9")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout), "got %v", err)
	})
}

func TestNormalizeNationalID(t *testing.T) {
	require.Equal(t, "12345678-K", NormalizeNationalID(" 12.345.678-k "))
}
