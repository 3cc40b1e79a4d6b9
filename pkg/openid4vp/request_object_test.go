package openid4vp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestObjectRoundTrip(t *testing.T) {
	want := []byte(`{
		"iss": "https://verifier.example",
		"aud": "https://self-issued.me/v2",
		"iat": 1700000000,
		"response_type": "code",
		"client_id": "verifier.example",
		"nonce": "n-0S6_WzA2Mj",
		"response_mode": "direct_post",
		"response_uri": "https://verifier.example/response"
	}`)

	var obj RequestObject
	assert.NoError(t, json.Unmarshal(want, &obj))
	assert.Equal(t, "verifier.example", obj.ClientID)
	assert.Equal(t, "n-0S6_WzA2Mj", obj.Nonce)

	got, err := json.Marshal(obj)
	assert.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}
