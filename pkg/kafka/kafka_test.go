package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Query string `json:"query"`
	Hits  int    `json:"hits"`
}

func TestEncodeAndDecode(t *testing.T) {
	msgs, err := encode([]Event{{Key: "refund", Value: sample{Query: "refund", Hits: 2}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("refund"), msgs[0].Key)

	got, err := DecodeJSON[sample](msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, sample{Query: "refund", Hits: 2}, got)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode([]Event{{Key: "k", Value: make(chan int)}})
	assert.Error(t, err)
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte("{"))
	assert.Error(t, err)
}
