package oauth

import (
	"context"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

// ClientValidator authenticates OAuth clients. The token and revocation
// endpoints share it so neither can skip credential checks.
type ClientValidator struct {
	clients store.ClientRepository
}

// NewClientValidator creates a ClientValidator.
func NewClientValidator(clients store.ClientRepository) *ClientValidator {
	return &ClientValidator{clients: clients}
}

// Validate authenticates a client. Confidential clients must present a
// secret matching the stored hash; public clients may omit the secret and
// are bound by PKCE instead (enforced by the exchanger). Unknown, disabled,
// and credential-mismatch cases all collapse into the same invalid_client
// error so callers cannot probe for client existence.
func (v *ClientValidator) Validate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	if clientID == "" {
		return nil, agerrors.InvalidInput("client_id is required")
	}

	client, err := v.clients.GetByID(ctx, clientID)
	if err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			// Burn a hash comparison so unknown clients cost the same.
			secrets.Verify(clientSecret, dummyHash)
			return nil, agerrors.InvalidClient("client authentication failed")
		}
		return nil, agerrors.Internal("client lookup failed", err)
	}
	if client.Disabled {
		return nil, agerrors.InvalidClient("client authentication failed")
	}

	if client.Confidential() {
		if clientSecret == "" {
			return nil, agerrors.InvalidClient("client authentication failed")
		}
		ok, err := secrets.Verify(clientSecret, client.SecretHash)
		if err != nil || !ok {
			return nil, agerrors.InvalidClient("client authentication failed")
		}
	}

	return client, nil
}

// dummyHash keeps validation timing uniform for unknown clients.
var dummyHash = func() string {
	h, _ := secrets.Hash("timing-equalizer")
	return h
}()
