package noop_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"parserator/internal/email/noop"
)

func TestNoopSender(t *testing.T) {
	sender := noop.NewNoopSender()

	assert.NoError(t, sender.SendKeyCreatedEmail(context.Background(), "dev@example.com", "ci", "pk_live_abcdefgh"))
	assert.NoError(t, sender.SendQuotaWarningEmail(context.Background(), "dev@example.com", 80, 100))
}
