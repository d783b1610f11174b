// Command devtoken registers a directory entry and prints a bearer token for
// it. Tokens come from an external identity provider outside development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/users"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

func main() {
	nationalID := flag.String("national-id", "", "national id placed in the token subject")
	roleFlag := flag.String("role", string(enums.RoleDirectiva), "one of directiva, tesorera, entrenador, apoderado")
	name := flag.String("name", "", "display name; when set the user is added to the directory")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Error(ctx, "refusing to mint tokens", errors.New("devtoken is disabled in prod"))
		os.Exit(1)
	}

	role, err := enums.ParseRole(*roleFlag)
	if err != nil {
		logg.Error(ctx, "invalid role", err)
		os.Exit(2)
	}
	id := strings.TrimSpace(*nationalID)
	if id == "" {
		logg.Error(ctx, "missing flag", errors.New("-national-id is required"))
		os.Exit(2)
	}

	if strings.TrimSpace(*name) != "" {
		if err := ensureUser(ctx, cfg, logg, users.CreateUserDTO{NationalID: id, FullName: strings.TrimSpace(*name), Role: role}); err != nil {
			logg.Error(ctx, "failed to register user", err)
			os.Exit(1)
		}
	}

	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		NationalID: id,
		Role:       role,
		JTI:        uuid.NewString(),
	})
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func ensureUser(ctx context.Context, cfg *config.Config, logg *logger.Logger, dto users.CreateUserDTO) error {
	client, err := db.Connect(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	repo := users.NewRepository(client.DB())
	if _, err := repo.FindByNationalID(ctx, dto.NationalID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	_, err = repo.Create(ctx, dto)
	return err
}
