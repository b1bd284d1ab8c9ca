package responsevalidator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_EmptyResponse(t *testing.T) {
	r := Validate("", Options{})
	require.False(t, r.Valid)
	require.Contains(t, r.Issues, "response is empty")
}

func TestValidate_RequiresCitationByDefault(t *testing.T) {
	r := Validate("The sky is blue.", Options{})
	require.False(t, r.Valid)
	require.Contains(t, r.Issues, "response contains no [Source N] citation")
}

func TestValidate_NoCitationFlagSkipsCheck(t *testing.T) {
	r := Validate("The sky is blue.", Options{NoCitation: true})
	require.True(t, r.Valid)
}

func TestValidate_AcceptsCitedResponse(t *testing.T) {
	r := Validate("The sky is blue [Source 1].", Options{})
	require.True(t, r.Valid)
}

func TestValidate_FlagsRefusalWithPassages(t *testing.T) {
	r := Validate("I don't have enough information to answer that.", Options{NoCitation: true, PassagesUsed: true})
	require.False(t, r.Valid)
}
