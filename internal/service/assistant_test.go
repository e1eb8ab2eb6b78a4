package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
)

func TestAssistantNotConfigured(t *testing.T) {
	h := newHarness()
	a := NewAssistant(zap.NewNop(), nil, h.dispatcher)

	assert.False(t, a.Enabled())
	assert.Equal(t, MsgLLMNotConfigured, a.Handle(context.Background(), h.user(), "lock my car"))
}

func TestAssistantProviderFailure(t *testing.T) {
	h := newHarness()

	for _, c := range []*fakeCompleter{{err: errFake}, {reply: "  "}} {
		a := NewAssistant(zap.NewNop(), c, h.dispatcher)
		assert.Equal(t, MsgLLMTrouble, a.Handle(context.Background(), h.user(), "hi"))
	}
}

func TestAssistantDispatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.addVehicle(freshCredential("at", "rt"))
	h.provider.odometer = &models.Odometer{DistanceKm: 512.3}

	c := &fakeCompleter{reply: `{"message":"Locking now.","action":"lock","confidence":0.95}`}
	a := NewAssistant(zap.NewNop(), c, h.dispatcher)

	got := a.Handle(ctx, h.user(), "please lock my car")
	assert.Equal(t, "Locking now.\n\n✅ 2021 Tesla Model 3 has been locked.", got)
	assert.Equal(t, 1, h.provider.count("lock"))

	assert.Equal(t, SystemPrompt, c.prompt.System)
	assert.Contains(t, c.prompt.User, "Context:\nConnected vehicles:\n1. 2021 Tesla Model 3 (Status: active)")
	assert.Contains(t, c.prompt.User, "- Odometer: 512.3 km")
	assert.Contains(t, c.prompt.User, "\n\nUser message: please lock my car")
}

func TestAssistantConversationOnly(t *testing.T) {
	h := newHarness()

	c := &fakeCompleter{reply: "Hello there! How can I help?"}
	a := NewAssistant(zap.NewNop(), c, h.dispatcher)

	assert.Equal(t, "Hello there! How can I help?", a.Handle(context.Background(), h.user(), "hi"))
	assert.Contains(t, c.prompt.User, "Context:\nNo vehicles connected.")
}
