package job

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoworker/internal/domain"
)

func TestDecodeSpecEnvelope(t *testing.T) {
	spec, err := DecodeSpec(strings.NewReader(`{"input":{"prompt":"a cat","seed":2147483647,"cfg":6.5}}`))
	require.NoError(t, err)
	assert.Equal(t, "a cat", spec["prompt"])
	assert.Equal(t, json.Number("2147483647"), spec["seed"])
	assert.Equal(t, json.Number("6.5"), spec["cfg"])
}

func TestDecodeSpecBareObject(t *testing.T) {
	spec, err := DecodeSpec(strings.NewReader(`{"prompt":"bare","width":640}`))
	require.NoError(t, err)
	assert.Equal(t, "bare", spec["prompt"])
	assert.Equal(t, json.Number("640"), spec["width"])
}

func TestDecodeSpecNullInput(t *testing.T) {
	spec, err := DecodeSpec(strings.NewReader(`{"input":null}`))
	require.NoError(t, err)
	assert.NotNil(t, spec)
	assert.Empty(t, spec)
}

func TestDecodeSpecRejectsNonObjects(t *testing.T) {
	for _, body := range []string{``, `[]`, `null`, `"x"`, `{"input":[1,2]}`, `{"input":{}} {}`} {
		_, err := DecodeSpec(strings.NewReader(body))
		var inputErr *domain.InputError
		require.ErrorAs(t, err, &inputErr, "body %q", body)
		assert.True(t, domain.IsClientError(err))
	}
}
