// Package appservice redeploys a container web app through the Azure
// Resource Manager API.
package appservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/appservice/armappservice/v2"
	"github.com/go-logr/logr"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/secrets"
)

// Client implements [pipeline.Deployer] for web apps for containers.
type Client struct {
	// Secrets holds the credential bundle named CredentialsSecret. It is
	// read on every Deploy, never before.
	Secrets           secrets.Store
	CredentialsSecret string

	ResourceGroup      string
	ManagementEndpoint string
	AuthorityHost      string

	// ClientOptions carries transport and retry settings. Its Cloud is
	// always derived from ManagementEndpoint and AuthorityHost.
	ClientOptions azcore.ClientOptions
}

var _ pipeline.Deployer = &Client{}

// Deploy points the web app named req.Target at req.Image and asks for an
// asynchronous restart. It returns as soon as the restart was accepted.
func (c *Client) Deploy(ctx context.Context, req pipeline.DeployRequest) error {
	logger := logr.FromContextOrDiscard(ctx)

	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}
	sites, err := c.webApps(creds)
	if err != nil {
		return err
	}

	resp, err := sites.Get(ctx, c.ResourceGroup, req.Target, nil)
	if err != nil {
		return classify("get site "+req.Target, err)
	}
	kind := ""
	if resp.Kind != nil {
		kind = *resp.Kind
	}
	if !isContainerApp(kind) {
		return fmt.Errorf("%w: site %s has kind %q, want a linux container app", shipiterr.ErrTargetMisconfigured, req.Target, kind)
	}
	state := ""
	if resp.Properties != nil && resp.Properties.State != nil {
		state = *resp.Properties.State
	}
	logger.V(log.DBG).Info("deployment target found", "site", req.Target, "state", state)

	linuxFxVersion := "DOCKER|" + req.Image
	_, err = sites.UpdateConfiguration(ctx, c.ResourceGroup, req.Target, armappservice.SiteConfigResource{
		Properties: &armappservice.SiteConfig{LinuxFxVersion: to.Ptr(linuxFxVersion)},
	}, nil)
	if err != nil {
		return classify("update configuration of "+req.Target, err)
	}
	logger.Info("deployment target updated", "linuxFxVersion", linuxFxVersion)

	_, err = sites.Restart(ctx, c.ResourceGroup, req.Target, &armappservice.WebAppsClientRestartOptions{
		Synchronous: to.Ptr(false),
	})
	if err != nil {
		return classify("restart "+req.Target, err)
	}
	logger.Info("deployment target restart requested", "target", req.Target)
	return nil
}

// credentials resolves and parses the credential bundle. Every failure is
// an authentication error.
func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	if c.Secrets == nil {
		return Credentials{}, fmt.Errorf("%w: no credential store configured", shipiterr.ErrAuthentication)
	}
	raw, err := c.Secrets.Lookup(ctx, c.CredentialsSecret)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: could not read cloud credentials: %v", shipiterr.ErrAuthentication, err)
	}
	return ParseCredentials(raw)
}

func (c *Client) webApps(creds Credentials) (*armappservice.WebAppsClient, error) {
	opts := c.ClientOptions
	opts.Cloud = cloud.Configuration{
		ActiveDirectoryAuthorityHost: c.AuthorityHost,
		Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
			cloud.ResourceManager: {
				Endpoint: c.ManagementEndpoint,
				Audience: c.ManagementEndpoint,
			},
		},
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, &azidentity.ClientSecretCredentialOptions{
		ClientOptions:            opts,
		DisableInstanceDiscovery: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shipiterr.ErrAuthentication, err)
	}

	sites, err := armappservice.NewWebAppsClient(creds.SubscriptionID, cred, &arm.ClientOptions{
		ClientOptions:         opts,
		DisableRPRegistration: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not create management client: %v", shipiterr.ErrTargetMisconfigured, err)
	}
	return sites, nil
}

// isContainerApp reports whether a site kind such as "app,linux,container"
// names a Linux web app for containers.
func isContainerApp(kind string) bool {
	var linux, container bool
	for _, k := range strings.Split(kind, ",") {
		switch strings.TrimSpace(strings.ToLower(k)) {
		case "linux":
			linux = true
		case "container":
			container = true
		}
	}
	return linux && container
}

// classify wraps a failed management call in its error category.
// Rejected credentials are authentication errors, a missing site is not
// found, and anything else the API refuses is a misconfiguration. Calls
// that never got a response are network errors.
func classify(op string, err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		if authErr.RawResponse == nil {
			return fmt.Errorf("%w: %s: could not obtain management token: %v", shipiterr.ErrNetwork, op, err)
		}
		return fmt.Errorf("%w: %s: could not obtain management token: %s", shipiterr.ErrAuthentication, op, tokenErrorSummary(authErr.RawResponse))
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		category := shipiterr.ErrTargetMisconfigured
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = shipiterr.ErrAuthentication
		case http.StatusNotFound:
			category = shipiterr.ErrTargetNotFound
		}
		return fmt.Errorf("%w: %s: status code: %d: %s", category, op, respErr.StatusCode, respErr.ErrorCode)
	}

	return fmt.Errorf("%w: %s: %v", shipiterr.ErrNetwork, op, err)
}

// tokenError is the error body of the token endpoint.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// tokenErrorSummary describes a token endpoint rejection by status and
// error code only. Request details stay out of it.
func tokenErrorSummary(resp *http.Response) string {
	body, err := azruntime.Payload(resp)
	if err == nil {
		var te tokenError
		if json.Unmarshal(body, &te) == nil && te.Error != "" {
			return resp.Status + ": " + te.Error
		}
	}
	return resp.Status
}
