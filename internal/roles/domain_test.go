package roles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCodeRoundTrip(t *testing.T) {
	for _, r := range All() {
		decoded, err := FromCode(r.Code())
		require.NoError(t, err)
		assert.Equal(t, r, decoded)

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		var back Role
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, r, back, "role %s", r)
	}
}

func TestRoleWireIsNumeric(t *testing.T) {
	raw, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{Role: Leader})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":2}`, string(raw))

	var r Role
	err = json.Unmarshal([]byte(`"Leader"`), &r)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleRejectsUnknownCodes(t *testing.T) {
	_, err := FromCode(0)
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = FromCode(9)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = json.Marshal(Unknown)
	assert.Error(t, err)
}

func TestParseAcceptsNamesAndCodes(t *testing.T) {
	cases := map[string]Role{
		"Director": Director,
		"leader":   Leader,
		" 3 ":      Employee,
		"1":        Director,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "admin", "7"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidRole, in)
	}
}
