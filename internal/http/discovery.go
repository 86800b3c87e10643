package http

import (
	"net/http"
	"strings"
)

// DiscoveryDocument is the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// DiscoveryHandler serves the discovery endpoint.
type DiscoveryHandler struct {
	issuerURL string
}

// NewDiscoveryHandler creates a DiscoveryHandler.
func NewDiscoveryHandler(issuerURL string) *DiscoveryHandler {
	return &DiscoveryHandler{
		issuerURL: strings.TrimSuffix(issuerURL, "/"),
	}
}

// OpenIDConfiguration handles /.well-known/openid-configuration.
func (h *DiscoveryHandler) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	doc := DiscoveryDocument{
		Issuer:                h.issuerURL,
		AuthorizationEndpoint: h.issuerURL + "/oauth/authorize",
		TokenEndpoint:         h.issuerURL + "/oauth/token",
		RevocationEndpoint:    h.issuerURL + "/oauth/revoke",
		IntrospectionEndpoint: h.issuerURL + "/oauth/introspect",
		JwksURI:               h.issuerURL + "/.well-known/jwks.json",

		ScopesSupported: []string{
			"openid",
			"profile",
			"email",
		},

		ResponseTypesSupported: []string{
			"code",
		},

		// authorization_code is the only grant the token endpoint accepts.
		GrantTypesSupported: []string{
			"authorization_code",
		},

		SubjectTypesSupported: []string{
			"public",
		},

		IDTokenSigningAlgValuesSupported: []string{
			"RS256",
		},

		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_basic",
			"client_secret_post",
			"none", // public clients with PKCE
		},

		CodeChallengeMethodsSupported: []string{
			"S256",
			"plain",
		},
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, doc)
}
