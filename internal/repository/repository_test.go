package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/langchou/carva/internal/models"
)

func setupPostgres(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "carva",
			"POSTGRES_PASSWORD": "carva",
			"POSTGRES_DB":       "carva",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://carva:carva@%s:%s/carva?sslmode=disable", host, port.Port())
	db, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	// 迁移可重复执行
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestRepositories(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	vehicles := NewVehicleRepository(db)

	t.Run("users", func(t *testing.T) {
		_, err := users.GetByTelegramID(ctx, 1001)
		require.ErrorIs(t, err, ErrNotFound)

		u, err := users.GetOrCreate(ctx, 1001, models.UserProfile{Username: "alice", FirstName: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, int64(1001), u.TelegramID)
		require.NotNil(t, u.Username)
		assert.Equal(t, "alice", *u.Username)

		// 空字段不覆盖已有值
		again, err := users.GetOrCreate(ctx, 1001, models.UserProfile{LastName: "Liddell"})
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)
		require.NotNil(t, again.Username)
		assert.Equal(t, "alice", *again.Username)
		require.NotNil(t, again.LastName)
		assert.Equal(t, "Liddell", *again.LastName)

		got, err := users.GetByTelegramID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		created, err := users.Create(ctx, 1002, models.UserProfile{})
		require.NoError(t, err)
		assert.Nil(t, created.Username)
	})

	t.Run("vehicles", func(t *testing.T) {
		owner, err := users.GetByTelegramID(ctx, 1001)
		require.NoError(t, err)

		_, err = vehicles.GetBySmartcarID(ctx, "sc-1")
		require.ErrorIs(t, err, ErrNotFound)

		exp := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
		mk, year := "Tesla", 2021
		v, created, err := vehicles.Create(ctx, NewVehicle{
			UserID:            owner.ID,
			SmartcarVehicleID: "sc-1",
			Info:              &models.VehicleInfo{Make: &mk, Year: &year},
			Credential:        &models.Credential{AccessToken: "a1", RefreshToken: "r1", Expiration: &exp},
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.VehicleStatusActive, v.Status)
		assert.Equal(t, "2021 Tesla", v.DisplayName())
		require.NotNil(t, v.Credential)
		assert.True(t, exp.Equal(*v.Credential.Expiration))

		// 重复创建不会产生新行
		dup, created, err := vehicles.Create(ctx, NewVehicle{
			UserID:            owner.ID,
			SmartcarVehicleID: "sc-1",
			Credential:        &models.Credential{AccessToken: "a2", RefreshToken: "r2"},
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, v.ID, dup.ID)
		assert.Equal(t, "a2", dup.Credential.AccessToken)
		assert.Nil(t, dup.Credential.Expiration)

		pending, _, err := vehicles.Create(ctx, NewVehicle{UserID: owner.ID, SmartcarVehicleID: "sc-2"})
		require.NoError(t, err)
		assert.Equal(t, models.VehicleStatusPending, pending.Status)
		assert.Nil(t, pending.Credential)

		list, err := vehicles.ListByUserID(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "sc-1", list[0].SmartcarVehicleID)

		updated, err := vehicles.SetCredential(ctx, pending.ID, models.Credential{AccessToken: "a3", RefreshToken: "r3"})
		require.NoError(t, err)
		assert.Equal(t, models.VehicleStatusActive, updated.Status)

		errored, err := vehicles.UpdateStatus(ctx, pending.ID, models.VehicleStatusError)
		require.NoError(t, err)
		assert.Equal(t, models.VehicleStatusError, errored.Status)

		require.NoError(t, vehicles.Delete(ctx, pending.ID))
		require.ErrorIs(t, vehicles.Delete(ctx, pending.ID), ErrNotFound)
		_, err = vehicles.GetByID(ctx, pending.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}
