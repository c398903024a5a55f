package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestName(t *testing.T) {
	assert.Equal(t, "json", Name)
	assert.Equal(t, "json", jsonCodec{}.Name())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	c := jsonCodec{}
	b, err := c.Marshal(payload{Name: "checkout", N: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"checkout","n":3}`, string(b))

	var out payload
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, payload{Name: "checkout", N: 3}, out)
}

func TestUnmarshalMalformedReturnsWrappedError(t *testing.T) {
	c := jsonCodec{}
	var out payload
	err := c.Unmarshal([]byte("not json"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codec: unmarshal")
}
