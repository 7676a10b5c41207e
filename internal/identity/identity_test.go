package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func TestGoogleVerify(t *testing.T) {
	tests := []struct {
		name    string
		claims  map[string]interface{}
		err     error
		wantErr error
		want    string
	}{
		{
			name:   "verified email",
			claims: map[string]interface{}{"email": "alice@example.com", "email_verified": true, "name": "Alice", "picture": "https://img/a.png"},
			want:   "Alice",
		},
		{
			name:   "name assembled from parts",
			claims: map[string]interface{}{"email": "bob@example.com", "email_verified": "true", "given_name": "Bob", "family_name": "Stone"},
			want:   "Bob Stone",
		},
		{
			name:    "unverified email",
			claims:  map[string]interface{}{"email": "eve@example.com", "email_verified": false},
			wantErr: ErrUnverifiedEmail,
		},
		{
			name:    "missing verification claim",
			claims:  map[string]interface{}{"email": "eve@example.com"},
			wantErr: ErrUnverifiedEmail,
		},
		{
			name:    "missing email",
			claims:  map[string]interface{}{"email_verified": true},
			wantErr: ErrInvalidAssertion,
		},
		{
			name:    "signature rejected upstream",
			err:     errors.New("idtoken: invalid signature"),
			wantErr: ErrInvalidAssertion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Google{clientID: "client", validate: func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
				assert.Equal(t, "client", audience)
				if tt.err != nil {
					return nil, tt.err
				}
				return &idtoken.Payload{Claims: tt.claims}, nil
			}}

			got, err := g.Verify(context.Background(), "id-token")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.claims["email"], got.Email)
		})
	}
}

func TestRegistryRoutesByProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("Google", &Google{validate: func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Claims: map[string]interface{}{"email": "a@b.c", "email_verified": true}}, nil
	}})

	got, err := r.Verify(context.Background(), "google", "tok")
	require.NoError(t, err)
	assert.Equal(t, "google", got.Provider)

	_, err = r.Verify(context.Background(), "github", "tok")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
