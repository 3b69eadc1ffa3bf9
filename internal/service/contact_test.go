package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactSubmit(t *testing.T) {
	sender := &recordingSender{}
	svc := NewContactService(testRenderer(t), sender, "owner@example.com", testLogger())

	err := svc.Submit(context.Background(), ContactInput{
		Name:    "Visitor",
		Email:   "Visitor@Example.com",
		Subject: "Hello",
		Message: "Love the site.",
	})
	require.NoError(t, err)

	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "visitor@example.com", msg.ReplyTo)
	assert.Equal(t, "[Contact] Hello", msg.Subject)
	assert.Contains(t, msg.Text, "Love the site.")
}

func TestContactSubmit_Validation(t *testing.T) {
	sender := &recordingSender{}
	svc := NewContactService(testRenderer(t), sender, "owner@example.com", testLogger())

	err := svc.Submit(context.Background(), ContactInput{Email: "bad"})
	assert.Equal(t, map[string][]string{
		"name":    {"This field is required."},
		"email":   {"Enter a valid email address."},
		"subject": {"This field is required."},
		"message": {"This field is required."},
	}, fieldErrors(t, err))
	assert.Empty(t, sender.msgs)
}

func TestContactSubmit_SendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewContactService(testRenderer(t), sender, "owner@example.com", testLogger())

	err := svc.Submit(context.Background(), ContactInput{
		Name: "V", Email: "v@example.com", Subject: "S", Message: "M",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}
