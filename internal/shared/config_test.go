package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, nil, 0644))
	return p
}

func TestParseServerArgs(t *testing.T) {
	dir := t.TempDir()
	db := touch(t, dir, "pizza.db")
	pub := touch(t, dir, "pub.pem")
	priv := touch(t, dir, "priv.pem")

	c, err := ParseServerArgs([]string{"7777", db, pub, priv})
	require.NoError(t, err)
	assert.Equal(t, uint16(7777), c.Port)
	assert.Equal(t, db, c.DBPath)
	assert.Equal(t, DefaultServerName, c.ServerName)
	assert.Equal(t, DefaultDeadline, c.Deadline)
	assert.False(t, c.AllowDebugBypass)
	assert.Equal(t, "0.0.0.0:7777", c.Addr())

	c, err = ParseServerArgs([]string{
		"--allow-debug-bypass", "--deadline", "5s", "--server-name", "test",
		"8080", db, pub, priv,
	})
	require.NoError(t, err)
	assert.True(t, c.AllowDebugBypass)
	assert.Equal(t, 5*time.Second, c.Deadline)
	assert.Equal(t, "test", c.ServerName)
}

func TestParseServerArgsErrors(t *testing.T) {
	dir := t.TempDir()
	db := touch(t, dir, "pizza.db")
	pub := touch(t, dir, "pub.pem")
	priv := touch(t, dir, "priv.pem")

	_, err := ParseServerArgs([]string{"7777", db, pub})
	assert.ErrorIs(t, err, ErrUsage)

	_, err = ParseServerArgs([]string{"port", db, pub, priv})
	assert.ErrorIs(t, err, ErrUsage)

	_, err = ParseServerArgs([]string{"70000", db, pub, priv})
	assert.ErrorIs(t, err, ErrUsage)

	_, err = ParseServerArgs([]string{"7777", db, pub, filepath.Join(dir, "nope.pem")})
	assert.EqualError(t, err, "could not find provided key files")

	_, err = ParseServerArgs([]string{"7777", filepath.Join(dir, "nope.db"), pub, priv})
	assert.EqualError(t, err, "could not find provided db")
}

func TestParseClientArgs(t *testing.T) {
	c, err := ParseClientArgs([]string{"order", "--name", "n", "--address", "a", "--pizza-id", "1", "--pizza-id", "2,2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 2}, c.PizzaIDs)

	c, err = ParseClientArgs([]string{"receipt", "--token", "a.b.c", "--server", "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", c.Token)
	assert.Equal(t, "http://x", c.Server)

	for _, args := range [][]string{
		nil,
		{"dance"},
		{"order", "--name", "n"},
		{"receipt"},
	} {
		_, err := ParseClientArgs(args)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}
}
