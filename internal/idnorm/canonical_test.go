package idnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON_SortsKeysAndStripsWhitespace(t *testing.T) {
	data, err := CanonicalJSON(map[string]interface{}{
		"b": []interface{}{1, "x"},
		"a": map[string]interface{}{"z": 1, "y": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":[1,"x"]}`, string(data))
}

func TestCanonicalJSON_PreservesLargeCounts(t *testing.T) {
	// 2^53+1 is the first integer float64 cannot represent.
	data, err := CanonicalJSON(map[string]uint64{"count": 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, `{"count":9007199254740993}`, string(data))

	data, err = CanonicalJSON(map[string]interface{}{"id": uint64(1) << 60})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1152921504606846976}`, string(data))
}
