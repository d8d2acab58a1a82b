package wire

import (
	"testing"
	"time"

	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEncodeDecode(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	account := &model.Account{
		ID:           "u1",
		FirstName:    "Joe",
		Email:        "a@x.com",
		DateOfBirth:  "1990-01-31",
		PasswordHash: "$argon2id$secret",
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Hour),
	}

	data, err := Encode(model.AccountEvent{ID: "e1", After: account})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	event, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "e1", event.ID)
	assert.Nil(t, event.Before)
	require.NotNil(t, event.After)
	assert.Equal(t, account.Public(), *event.After)
}

func TestDecode_Malformed(t *testing.T) {
	noAccount, err := proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id": structpb.NewStringValue("e1"),
	}})
	require.NoError(t, err)
	noID, err := Encode(model.AccountEvent{After: &model.Account{ID: "u1"}})
	require.NoError(t, err)
	badTime, err := proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id": structpb.NewStringValue("e1"),
		"before": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":        structpb.NewStringValue("u1"),
			"createdAt": structpb.NewStringValue("yesterday"),
		}}),
	}})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a protobuf message", data: []byte{0xff, 0xff, 0xff}},
		{name: "event without accounts", data: noAccount},
		{name: "event without id", data: noID},
		{name: "invalid timestamp", data: badTime},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
