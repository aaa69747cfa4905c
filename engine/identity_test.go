package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"just3sec/core"
)

func TestIdentitySwitchNotifiesOnChangeOnly(t *testing.T) {
	ids := NewIdentitySwitch()
	var seen []core.UserID
	off := ids.OnChange(func(u core.UserID, ok bool) { seen = append(seen, u) })

	ids.SignIn("a")
	ids.SignIn("a")
	ids.SignIn("b")
	ids.SignOut()
	ids.SignOut()
	assert.Equal(t, []core.UserID{"a", "b", core.Anonymous}, seen)

	off()
	ids.SignIn("c")
	assert.Len(t, seen, 3)

	u, ok := ids.Current()
	assert.True(t, ok)
	assert.Equal(t, core.UserID("c"), u)
}
