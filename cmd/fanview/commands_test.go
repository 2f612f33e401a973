package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"Fanvault/internal/client/api"
	"Fanvault/internal/client/broadcast"
	"Fanvault/internal/client/viewstate"
)

func TestFormatChange(t *testing.T) {
	line := formatChange(viewstate.Change{
		Kind:     broadcast.KindLike,
		TargetID: "p1",
		Source:   viewstate.SourceBroadcast,
		State:    viewstate.TargetState{Engaged: true, Count: 6},
	})
	assert.Equal(t, "[broadcast] like * p1 count=6", line)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "Sign in to like posts.", describeError(viewstate.ErrNotAuthenticated))
	assert.Equal(t, "That post is no longer available.", describeError(api.ErrTargetNotFound))
	assert.Equal(t, "Couldn't reach Fanvault. Try again.", describeError(&api.NetworkError{Op: "x", Err: errors.New("reset")}))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["watch"])
	assert.True(t, names["like"])
}
