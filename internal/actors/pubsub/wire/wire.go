// Package wire encodes account events as protobuf messages for the pubsub topic.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/rbroggi/souqly/internal/core/model"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformedEvent is returned when a message cannot be decoded into an account event.
var ErrMalformedEvent = errors.New("malformed account event")

const (
	fieldID     = "id"
	fieldBefore = "before"
	fieldAfter  = "after"
)

// Encode marshals the event. Password hashes are never encoded.
func Encode(event model.AccountEvent) ([]byte, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:     structpb.NewStringValue(event.ID),
		fieldBefore: accountValue(event.Before),
		fieldAfter:  accountValue(event.After),
	}}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("error marshaling account-event proto message: %w", err)
	}
	return data, nil
}

// Decode unmarshals an event produced by Encode.
func Decode(data []byte) (model.AccountEvent, error) {
	msg := new(structpb.Struct)
	if err := proto.Unmarshal(data, msg); err != nil {
		return model.AccountEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	id := msg.GetFields()[fieldID].GetStringValue()
	if id == "" {
		return model.AccountEvent{}, fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	before, err := toAccount(msg.GetFields()[fieldBefore])
	if err != nil {
		return model.AccountEvent{}, err
	}
	after, err := toAccount(msg.GetFields()[fieldAfter])
	if err != nil {
		return model.AccountEvent{}, err
	}
	if before == nil && after == nil {
		return model.AccountEvent{}, fmt.Errorf("%w: event %s has no account", ErrMalformedEvent, id)
	}
	return model.AccountEvent{ID: id, Before: before, After: after}, nil
}

func accountValue(a *model.Account) *structpb.Value {
	if a == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(a.ID),
		"firstName": structpb.NewStringValue(a.FirstName),
		"lastName":  structpb.NewStringValue(a.LastName),
		"email":     structpb.NewStringValue(a.Email),
		"phone":     structpb.NewStringValue(a.Phone),
		"country":   structpb.NewStringValue(a.Country),
		"city":      structpb.NewStringValue(a.City),
		"gender":    structpb.NewStringValue(a.Gender),
		"dob":       structpb.NewStringValue(a.DateOfBirth),
		"createdAt": structpb.NewStringValue(a.CreatedAt.Format(time.RFC3339Nano)),
		"updatedAt": structpb.NewStringValue(a.UpdatedAt.Format(time.RFC3339Nano)),
	}})
}

func toAccount(v *structpb.Value) (*model.Account, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, nil
	}
	f := s.GetFields()
	str := func(name string) string { return f[name].GetStringValue() }

	account := &model.Account{
		ID:          str("id"),
		FirstName:   str("firstName"),
		LastName:    str("lastName"),
		Email:       str("email"),
		Phone:       str("phone"),
		Country:     str("country"),
		City:        str("city"),
		Gender:      str("gender"),
		DateOfBirth: str("dob"),
	}
	if account.ID == "" {
		return nil, fmt.Errorf("%w: account without id", ErrMalformedEvent)
	}
	var err error
	if account.CreatedAt, err = parseTime(str("createdAt")); err != nil {
		return nil, err
	}
	if account.UpdatedAt, err = parseTime(str("updatedAt")); err != nil {
		return nil, err
	}
	return account, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return t.UTC(), nil
}
