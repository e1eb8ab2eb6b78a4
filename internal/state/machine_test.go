package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/carva/internal/models"
)

type change struct {
	from, to models.VehicleStatus
}

func TestMachineTransitions(t *testing.T) {
	ctx := context.Background()
	var changes []change
	m := NewMachine("v1", "", func(id string, from, to models.VehicleStatus) {
		assert.Equal(t, "v1", id)
		changes = append(changes, change{from, to})
	})

	assert.Equal(t, models.VehicleStatusPending, m.Current())
	assert.False(t, m.Can(EventDisconnect))

	st, err := m.Trigger(ctx, EventConnect)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusActive, st)

	// active -> active 不是错误，也不触发回调
	st, err = m.Trigger(ctx, EventConnect)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusActive, st)

	st, err = m.Trigger(ctx, EventFail)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusError, st)

	st, err = m.Trigger(ctx, EventDisconnect)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusDisconnected, st)

	_, err = m.Trigger(ctx, EventFail)
	require.Error(t, err)

	assert.Equal(t, []change{
		{models.VehicleStatusPending, models.VehicleStatusActive},
		{models.VehicleStatusActive, models.VehicleStatusError},
		{models.VehicleStatusError, models.VehicleStatusDisconnected},
	}, changes)
}

func TestManagerFollowsStore(t *testing.T) {
	mgr := NewManager(nil)
	v := &models.Vehicle{ID: "v1", Status: models.VehicleStatusActive}

	m1 := mgr.For(v)
	assert.Same(t, m1, mgr.For(v))

	v.Status = models.VehicleStatusError
	m2 := mgr.For(v)
	assert.NotSame(t, m1, m2)
	assert.Equal(t, models.VehicleStatusError, m2.Current())
	assert.Equal(t, 1, mgr.Len())
}
