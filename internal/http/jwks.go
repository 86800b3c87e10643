package http

import (
	"net/http"

	"github.com/appmint/authgate/internal/crypto"
)

// JWKSHandler serves the public signing keys.
type JWKSHandler struct {
	keyPair *crypto.KeyPair
}

// NewJWKSHandler creates a JWKSHandler.
func NewJWKSHandler(keyPair *crypto.KeyPair) *JWKSHandler {
	return &JWKSHandler{keyPair: keyPair}
}

// ServeJWKS handles the /.well-known/jwks.json endpoint.
func (h *JWKSHandler) ServeJWKS(w http.ResponseWriter, r *http.Request) {
	jwks := crypto.JWKS{
		Keys: []crypto.JWK{h.keyPair.ToJWK()},
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, jwks)
}
