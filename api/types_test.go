package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextName_UnmarshalJSON(t *testing.T) {
	var req RenounceRequest
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1,"name":"café.shop"}`), &req))
	assert.Equal(t, TextName("café.shop"), req.Name)

	for _, raw := range []string{
		"{\"name\":\"\xff\"}",
		`{"name":"\ud800"}`,
		"{\"name\":\"\uFFFD\"}",
	} {
		err := json.Unmarshal([]byte(raw), &req)
		assert.ErrorIs(t, err, ErrInvalidName, raw)
	}

	assert.Error(t, json.Unmarshal([]byte(`{"name":42}`), &req))
}
