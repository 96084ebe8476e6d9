package cmd

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBlockedOnColumn(t *testing.T) {
	assert.Equal(t, "", blockedOnColumn(true, nil, nil))
	assert.Equal(t, "firewall, network", blockedOnColumn(false, []string{"firewall", "network"}, nil))

	// A validation error must surface, not read as "not blocked".
	cell := blockedOnColumn(false, nil, errors.New("state file corrupt"))
	assert.Contains(t, cell, "error:")
	assert.Contains(t, cell, "state file corrupt")

	cell = blockedOnColumn(true, nil, errors.New("state file corrupt"))
	assert.Contains(t, cell, "error:")
}
