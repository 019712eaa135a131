package main

import "os"
import "errors"
import "testing"
import "path/filepath"

import "github.com/bnclabs/memres"
import "github.com/bnclabs/memres/api"
import "github.com/bnclabs/memres/bounded"
import "github.com/bnclabs/memres/lib"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestLoadsettings(t *testing.T) {
	content := `
policy: accounting
budget: 1024
name: demo
arena:
  capacity: 65536
  overflow: heap
pool:
  maxblock: 512
`
	filename := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))

	setts, err := loadsettings(filename)
	require.NoError(t, err)
	assert.Equal(t, "accounting", setts["policy"])
	assert.Equal(t, int64(1024), setts["budget"])
	assert.Equal(t, "demo", setts["name"])
	assert.Equal(t, int64(65536), setts["arena.capacity"])
	assert.Equal(t, "heap", setts["arena.overflow"])
	assert.Equal(t, int64(512), setts["pool.maxblock"])

	_, err = loadsettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filename, []byte("policy: [x"), 0644))
	_, err = loadsettings(filename)
	assert.Error(t, err)
}

func TestStacksettings(t *testing.T) {
	options.policy, options.capacity = "accounting", 100
	options.budget, options.align = 50, 1
	options.settings = ""

	setts, err := stacksettings()
	require.NoError(t, err)
	assert.Equal(t, "accounting", setts["policy"])
	assert.Equal(t, int64(100), setts["arena.capacity"])
	assert.Equal(t, int64(50), setts["budget"])
	assert.Equal(t, int64(1), setts["alignment"])
}

func TestRunsequenceAccounting(t *testing.T) {
	options.policy, options.capacity = "accounting", 10
	options.budget, options.align = 10, 1
	options.settings = ""
	sizes, err := lib.Parsesizes("1,1,4,1,2,1,1,4")
	require.NoError(t, err)
	options.sizes, options.scoped = sizes, map[int]bool{1: true, 3: true}

	setts, err := stacksettings()
	require.NoError(t, err)
	stack := memres.NewStack(setts)
	defer stack.Release()
	evlog := bounded.NewEventlog()
	stack.SetRecorder(evlog)

	live, err := runsequence(stack)
	assert.True(t, errors.Is(err, api.ErrorBudgetExceeded))
	require.Equal(t, 5, len(live))
	lines := evlog.Lines()
	assert.Equal(t, "Allocated 1 bytes. Total allocated: 9", lines[len(lines)-1])

	for i := len(live) - 1; i >= 0; i-- {
		require.NoError(t, live[i].Close())
	}
	total := stack.Stats()["accounting"].(map[string]interface{})["total"]
	assert.Equal(t, int64(0), total)
}
