package idpsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the identity provider service. All methods are
// safe for concurrent use; the client holds no mutable state.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new identity provider client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
