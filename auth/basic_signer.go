package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-custom-sender/core"
)

const (
	MetadataBasicUsername = "username"
	MetadataBasicPassword = "password"
)

// BasicSigner sets HTTP basic credentials. Twilio authenticates with the
// account SID as username and the auth token as password.
type BasicSigner struct {
	Username string
	Password string
}

func (s BasicSigner) Sign(_ context.Context, req *http.Request, cred core.Credential) error {
	if req == nil {
		return fmt.Errorf("auth: http request is required")
	}
	username := firstNonEmpty(s.Username, readString(cred.Metadata, MetadataBasicUsername))
	password := firstNonEmpty(s.Password, cred.AccessToken, readString(cred.Metadata, MetadataBasicPassword))
	if username == "" || password == "" {
		return fmt.Errorf("auth: basic signing requires username and password")
	}
	req.SetBasicAuth(username, password)
	return nil
}

var _ core.Signer = BasicSigner{}
