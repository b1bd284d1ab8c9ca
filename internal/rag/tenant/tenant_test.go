package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ragforge/internal/rag/ragerr"
)

func TestValidate(t *testing.T) {
	_, err := Validate("")
	require.Equal(t, ragerr.TenantMissing, ragerr.KindOf(err))

	_, err = Validate("../etc/passwd")
	require.Equal(t, ragerr.InvalidInput, ragerr.KindOf(err))

	id, err := Validate("acme-corp_1")
	require.NoError(t, err)
	require.Equal(t, "acme-corp_1", id)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithTenant(context.Background(), "acme")
	id, err := FromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "acme", id)

	_, err = FromContext(context.Background())
	require.Equal(t, ragerr.TenantMissing, ragerr.KindOf(err))
}
