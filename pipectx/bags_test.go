package pipectx_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/errs"
	"github.com/stageflow/stageflow/pipectx"
	"github.com/stageflow/stageflow/stage"
)

func TestContextBagSetConflict(t *testing.T) {
	bag := pipectx.NewContextBag()
	require.NoError(t, bag.Set("k", 1))
	err := bag.Set("k", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDataConflict))
	v, ok := bag.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestContextBagToDictIsSnapshot(t *testing.T) {
	bag := pipectx.NewContextBag()
	require.NoError(t, bag.Set("a", 1))
	snap := bag.ToDict()
	require.NoError(t, bag.Set("b", 2))
	_, ok := snap["b"]
	assert.False(t, ok)
}

func TestOutputBagRejectsConflictingWrite(t *testing.T) {
	bag := pipectx.NewOutputBag()
	bag.Finalize("a")
	require.NoError(t, bag.Set("a", 1, stage.OK(stage.WithData(map[string]any{"v": 1})), pipectx.WriteNormal))
	err := bag.Set("a", 1, stage.OK(stage.WithData(map[string]any{"v": 2})), pipectx.WriteNormal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrOutputConflict))
}

func TestOutputBagRetryOverwritesUnfinalized(t *testing.T) {
	bag := pipectx.NewOutputBag()
	require.NoError(t, bag.Set("a", 1, stage.Retry("transient", true), pipectx.WriteRetry))
	require.NoError(t, bag.Set("a", 1, stage.OK(stage.WithData(map[string]any{"v": 1})), pipectx.WriteRetry))
	out, attempt, ok := bag.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 1, attempt)
	assert.Equal(t, stage.StatusOK, out.Status())
}

func TestOutputBagLatestTracksHighestAttempt(t *testing.T) {
	bag := pipectx.NewOutputBag()
	require.NoError(t, bag.Set("a", 1, stage.OK(stage.WithData(map[string]any{"v": 1})), pipectx.WriteNormal))
	require.NoError(t, bag.Set("a", 2, stage.OK(stage.WithData(map[string]any{"v": 2})), pipectx.WriteNormal))
	out, attempt, ok := bag.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, 2, out.Data()["v"])
}

func TestOutputBagToDictUsesLatestPerStage(t *testing.T) {
	bag := pipectx.NewOutputBag()
	require.NoError(t, bag.Set("a", 1, stage.OK(stage.WithData(map[string]any{"v": 1})), pipectx.WriteNormal))
	require.NoError(t, bag.Set("b", 1, stage.OK(stage.WithData(map[string]any{"v": 2})), pipectx.WriteNormal))
	d := bag.ToDict()
	assert.Equal(t, map[string]any{"v": 1}, d["a"])
	assert.Equal(t, map[string]any{"v": 2}, d["b"])
}
