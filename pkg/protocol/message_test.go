package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameShape(t *testing.T) {
	data, err := Encode(Envelope{Ref: "7", Topic: RequestTopic("r1"), Message: ResponseAccepted{RequestID: "r1", ResponseID: "x"}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "response_accepted", raw["type"])
	assert.Equal(t, "7", raw["ref"])
	assert.Equal(t, "request:r1", raw["topic"])
	assert.Equal(t, map[string]any{"requestId": "r1", "responseId": "x"}, raw["payload"])
}

func TestDecodeClientFrames(t *testing.T) {
	env, err := Decode([]byte(`{"type":"submit_response","ref":"a1","payload":{"requestId":"r1","responseType":"counteroffer","proposedPrice":150,"message":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a1", env.Ref)
	msg, ok := env.Message.(SubmitResponse)
	require.True(t, ok)
	require.NotNil(t, msg.ProposedPrice)
	assert.Equal(t, int64(150), *msg.ProposedPrice)
	assert.Equal(t, "counteroffer", msg.ResponseType)

	env, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, env.Message)
}

func TestDecodeSnapshotPayload(t *testing.T) {
	data, err := Encode(Envelope{Message: RequestCreated{RequestSnapshot{ID: "r1", City: "Bogotá", BudgetMin: 100, BudgetMax: 200}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"city":"Bogotá"`)

	env, err := Decode(data)
	require.NoError(t, err)
	created, ok := env.Message.(RequestCreated)
	require.True(t, ok)
	assert.Equal(t, "r1", created.ID)
	assert.Equal(t, int64(200), created.BudgetMax)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	env, err := Decode([]byte(`{"type":"dance","ref":"9"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, "9", env.Ref)

	_, err = Decode([]byte(`{"type":"auth","payload":{"token":5}}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownType)
}

func TestTopicParse(t *testing.T) {
	tests := []struct {
		topic    Topic
		kind, id string
		ok       bool
	}{
		{RequestTopic("abc"), "request", "abc", true},
		{UserTopic("u1"), "user", "u1", true},
		{CategoryTopic("dj"), "category", "dj", true},
		{"request:", "", "", false},
		{"offer:1", "", "", false},
		{"plain", "", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.topic), func(t *testing.T) {
			kind, id, err := tt.topic.Parse()
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.id, id)
		})
	}
}
