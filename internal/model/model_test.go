package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserView_NeverSerializesPassword(t *testing.T) {
	name := "Jane"
	u := &User{
		ID:           7,
		Email:        "jane@clinic.org",
		FirstName:    &name,
		PasswordHash: "$2a$10$hash",
		Roles:        []RoleName{RoleCHO},
		Supervises:   []*User{{ID: 3}, {ID: 4}},
	}

	raw, err := json.Marshal(NewUserView(u))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "$2a$10$hash")

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, []interface{}{"CHO"}, view["roleIds"])
	assert.Equal(t, []interface{}{float64(3), float64(4)}, view["vhtList"])

	raw, err = json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "$2a$10$hash")
}

func TestUserView_EmptyCollections(t *testing.T) {
	raw, err := json.Marshal(NewUserView(&User{ID: 1, Email: "a@b.org"}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"roleIds":[]`)
	assert.Contains(t, string(raw), `"vhtList":[]`)
}

func TestParseRoleName(t *testing.T) {
	for _, r := range AllRoles {
		got, err := ParseRoleName(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseRoleName("NURSE")
	assert.Error(t, err)
}

func TestTrafficLight_Groups(t *testing.T) {
	for _, tl := range AllTrafficLights {
		assert.True(t, tl.Valid(), tl)
		assert.False(t, tl.IsRed() && tl.IsYellow(), tl)
	}
	assert.True(t, TrafficLightRedDown.IsRed())
	assert.True(t, TrafficLightRedUp.IsRed())
	assert.True(t, TrafficLightYellowDown.IsYellow())
	assert.False(t, TrafficLightGreen.IsRed())
	assert.False(t, TrafficLight("BLUE").Valid())
}

func TestJSONMap_Scan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"email":"a@b.org"}`)))
	assert.Equal(t, "a@b.org", m["email"])

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))

	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestParseSex(t *testing.T) {
	s, err := ParseSex("FEMALE")
	require.NoError(t, err)
	assert.Equal(t, SexFemale, s)

	_, err = ParseSex("female")
	assert.Error(t, err)
}
