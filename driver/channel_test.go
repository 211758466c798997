package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oMatheuss/lina/driver"
)

func TestChannel(t *testing.T) {
	c := driver.NewChannel()
	c.Append("ola")
	c.Append("")
	assert.Equal(t, "5\n", c.Echo("5"))
	c.Append(" mundo\n")

	assert.Equal(t, "ola5\n mundo\n", c.String())
	assert.Equal(t, []string{"ola", "5\n", " mundo\n"}, c.Chunks())
	assert.Equal(t, len("ola5\n mundo\n"), c.Len())

	chunks := c.Chunks()
	chunks[0] = "mutated"
	assert.Equal(t, "ola", c.Chunks()[0])

	c.Clear()
	assert.Equal(t, "", c.String())
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Chunks())
}
