package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePlansConfig(t *testing.T) {
	assert.Error(t, validatePlansConfig(PlansConfig{}))
	assert.Error(t, validatePlansConfig(PlansConfig{Limits: []PlanLimits{{MaxMenuItems: 10}}}))
	assert.NoError(t, validatePlansConfig(DefaultPlansConfig()))
}

func TestLimitsFor(t *testing.T) {
	holder := &PlansConfigHolder{}
	holder.current.Store(DefaultPlansConfig())

	pro := holder.LimitsFor("pro")
	require.NotNil(t, pro)
	assert.True(t, pro.HasOrdersModule)
	assert.Equal(t, -1, pro.MaxMenuItems)

	assert.Nil(t, holder.LimitsFor("enterprise"))
}

func TestGatewayConfigured(t *testing.T) {
	assert.False(t, GatewayConfig{}.Configured())
	assert.False(t, GatewayConfig{KeyID: "rzp_key"}.Configured())
	assert.True(t, GatewayConfig{KeyID: "rzp_key", KeySecret: "secret"}.Configured())
}
