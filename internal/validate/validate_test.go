package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/snippetshare/internal/apperror"
)

type signup struct {
	Username string  `json:"username" validate:"required,max=150,username"`
	Email    string  `json:"email" validate:"required,email"`
	Language *string `json:"language,omitempty" validate:"omitnil,language"`
	Style    *string `json:"style" validate:"omitnil,style"`
	Internal string  `json:"-"`
}

func ptr(s string) *string { return &s }

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		input signup
		want  map[string][]string
	}{
		{
			name:  "valid",
			input: signup{Username: "alice.b+1", Email: "alice@example.com", Language: ptr("go"), Style: ptr("monokai")},
			want:  map[string][]string{},
		},
		{
			name:  "missing fields",
			input: signup{},
			want: map[string][]string{
				"username": {"This field is required."},
				"email":    {"This field is required."},
			},
		},
		{
			name:  "bad formats",
			input: signup{Username: "no spaces", Email: "nope"},
			want: map[string][]string{
				"username": {"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."},
				"email":    {"Enter a valid email address."},
			},
		},
		{
			name:  "too long",
			input: signup{Username: strings.Repeat("a", 151), Email: "a@example.com"},
			want:  map[string][]string{"username": {"Ensure this field has no more than 150 characters."}},
		},
		{
			name:  "unknown choices",
			input: signup{Username: "bob", Email: "b@example.com", Language: ptr("klingon"), Style: ptr("plaid")},
			want: map[string][]string{
				"language": {`"klingon" is not a valid choice.`},
				"style":    {`"plaid" is not a valid choice.`},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.input, nil)
			assert.Equal(t, apperror.FieldErrors(tt.want), got)
		})
	}
}

func TestCheck_MessageOverride(t *testing.T) {
	got := Check(signup{Username: "bob"}, Messages{"email.required": "Email is required"})
	assert.Equal(t, []string{"Email is required"}, got["email"])
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(signup{Username: "bob", Email: "b@example.com"}))

	err := Struct(signup{})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Detail(), "email")
}

func TestEmailAndUsername(t *testing.T) {
	assert.True(t, Email("a@b.co"))
	assert.False(t, Email("a@"))
	assert.False(t, Email(""))

	assert.True(t, Username("josé_99"))
	assert.False(t, Username("bad name"))
	assert.False(t, Username(""))
}
