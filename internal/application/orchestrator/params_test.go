package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParamsKeepsTypeForWholeStringPlaceholder(t *testing.T) {
	context := map[string]interface{}{
		"fetch": map[string]interface{}{"total": float64(42), "items": []interface{}{"x", "y"}},
	}

	resolved, err := resolveParams(map[string]interface{}{
		"count": "${fetch.output.total}",
		"items": "${fetch.output.items}",
	}, context)

	require.NoError(t, err)
	assert.Equal(t, float64(42), resolved["count"])
	assert.Equal(t, []interface{}{"x", "y"}, resolved["items"])
}

func TestResolveParamsInterpolatesEmbeddedPlaceholders(t *testing.T) {
	context := map[string]interface{}{
		"post": map[string]interface{}{"url": "https://example.com/p/1"},
	}

	resolved, err := resolveParams(map[string]interface{}{
		"message": "New post published: ${post.output.url}",
	}, context)

	require.NoError(t, err)
	assert.Equal(t, "New post published: https://example.com/p/1", resolved["message"])
}

func TestResolveParamsWalksNestedStructures(t *testing.T) {
	context := map[string]interface{}{
		"google": map[string]interface{}{"total": float64(7)},
	}

	resolved, err := resolveParams(map[string]interface{}{
		"properties": map[string]interface{}{
			"google_campaigns": "${google.output.total}",
		},
		"tags": []interface{}{"${google.output.total}", "static"},
	}, context)

	require.NoError(t, err)
	props := resolved["properties"].(map[string]interface{})
	assert.Equal(t, float64(7), props["google_campaigns"])
	assert.Equal(t, []interface{}{float64(7), "static"}, resolved["tags"])
}

func TestResolveParamsReadsSubmissionParams(t *testing.T) {
	context := map[string]interface{}{
		"params": map[string]interface{}{"topic": "quarterly report"},
	}

	resolved, err := resolveParams(map[string]interface{}{
		"prompt": "Write about ${params.topic}",
	}, context)

	require.NoError(t, err)
	assert.Equal(t, "Write about quarterly report", resolved["prompt"])
}

func TestResolveParamsFailsOnMissingReference(t *testing.T) {
	_, err := resolveParams(map[string]interface{}{
		"x": "${ghost.output.id}",
	}, map[string]interface{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved parameter reference")
}

func TestResolveParamsLeavesPlainValuesAlone(t *testing.T) {
	resolved, err := resolveParams(map[string]interface{}{
		"top":  50,
		"path": "/",
	}, map[string]interface{}{})

	require.NoError(t, err)
	assert.Equal(t, 50, resolved["top"])
	assert.Equal(t, "/", resolved["path"])
}

func TestResolveParamsWholeOutputReference(t *testing.T) {
	context := map[string]interface{}{
		"sharepoint": map[string]interface{}{"name": "root"},
	}

	resolved, err := resolveParams(map[string]interface{}{
		"sharepoint": "${sharepoint.output}",
	}, context)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "root"}, resolved["sharepoint"])
}
