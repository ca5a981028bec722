package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestTagsToAttrsPairsKeysAndValues(t *testing.T) {
	attrs := tagsToAttrs([]string{"stage", "fetch", "attempt", "2"})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("stage", "fetch"),
		attribute.String("attempt", "2"),
	}, attrs)
}

func TestTagsToAttrsOddLengthPairsLastKeyWithEmptyString(t *testing.T) {
	attrs := tagsToAttrs([]string{"stage"})
	assert.Equal(t, []attribute.KeyValue{attribute.String("stage", "")}, attrs)
}

func TestTagsToAttrsEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, tagsToAttrs(nil))
}

func TestKvSliceToAttrsHandlesEachSupportedType(t *testing.T) {
	attrs := kvSliceToAttrs([]any{
		"name", "fetch",
		"attempt", 2,
		"elapsed_ns", int64(100),
		"ratio", 0.5,
		"ok", true,
	})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("name", "fetch"),
		attribute.Int("attempt", 2),
		attribute.Int64("elapsed_ns", 100),
		attribute.Float64("ratio", 0.5),
		attribute.Bool("ok", true),
	}, attrs)
}

func TestKvSliceToAttrsUnsupportedValueTypeFallsBackToEmptyString(t *testing.T) {
	attrs := kvSliceToAttrs([]any{"payload", struct{ X int }{X: 1}})
	assert.Equal(t, []attribute.KeyValue{attribute.String("payload", "")}, attrs)
}

func TestKvSliceToAttrsNonStringKeyBecomesEmptyKey(t *testing.T) {
	attrs := kvSliceToAttrs([]any{42, "value"})
	assert.Equal(t, []attribute.KeyValue{attribute.String("", "value")}, attrs)
}

func TestKvSliceToAttrsOddLengthPairsLastKeyWithNilValue(t *testing.T) {
	attrs := kvSliceToAttrs([]any{"name"})
	assert.Equal(t, []attribute.KeyValue{attribute.String("name", "")}, attrs)
}
