package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundMarshal(t *testing.T) {
	b, err := Outbound{Event: EvError, Data: ErrorResponse{Key: "ERR_GAME_FULL", Message: "Game is full"}}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"key":"ERR_GAME_FULL","message":"Game is full"}}`, string(b))
}

func TestSeatsRendersVacantAsNull(t *testing.T) {
	b, err := json.Marshal(GameJoinedResponse{GameID: "ABC123", Players: Seats([2]string{"x", ""})})
	require.NoError(t, err)
	assert.JSONEq(t, `{"gameId":"ABC123","players":["x",null]}`, string(b))
}

func TestSelectPieceRequestDistinguishesMissing(t *testing.T) {
	var req SelectPieceRequest
	require.NoError(t, json.Unmarshal([]byte(`{"gameId":"A","piece":0}`), &req))
	require.NotNil(t, req.Piece)
	assert.Equal(t, 0, *req.Piece)

	req = SelectPieceRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"gameId":"A"}`), &req))
	assert.Nil(t, req.Piece)
}
