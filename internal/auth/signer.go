package auth

import "net/http"

// Signer signs request bodies for one account. Each Signer owns its nonce
// source, so two signers for the same key would race each other's nonces;
// build one per account.
type Signer struct {
	creds  Credentials
	nonces *NonceSource
}

// NewSigner returns a signer for creds.
func NewSigner(creds Credentials) *Signer {
	return &Signer{creds: creds, nonces: NewNonceSource()}
}

// Credentials returns the key pair the signer uses.
func (s *Signer) Credentials() Credentials {
	return s.creds
}

// Sign returns the hex HMAC-SHA512 tag of body.
func (s *Signer) Sign(body []byte) string {
	return Sign(s.creds.secretKey, body)
}

// SignedRequest is a fully built private request body.
type SignedRequest struct {
	Body      string
	Nonce     int64
	Key       string
	Signature string
}

// Prepare builds the body for command with params plus a fresh nonce and
// signs it. params is not modified.
func (s *Signer) Prepare(command string, params Params) SignedRequest {
	p := params.Clone()
	p["command"] = command
	nonce := s.nonces.Next()
	p["nonce"] = nonce

	body := EncodeForm(p)
	return SignedRequest{
		Body:      body,
		Nonce:     nonce,
		Key:       s.creds.publicKey,
		Signature: s.Sign([]byte(body)),
	}
}

// Apply sets the authentication and content headers on h.
func (r SignedRequest) Apply(h http.Header) {
	h.Set(HeaderKey, r.Key)
	h.Set(HeaderSign, r.Signature)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
}
