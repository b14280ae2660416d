package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
)

const (
	ssoClientName = "sealkeeper"
	ssoClientType = "public"
	ssoGrantType  = "urn:ietf:params:oauth:grant-type:device_code"

	// Added to the poll interval on SlowDownException.
	ssoSlowDown = 5 * time.Second
)

// SSOOIDCAPI is the subset of *ssooidc.Client used for the device login.
type SSOOIDCAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// SSOPortalAPI is the subset of *sso.Client that exchanges an access token for role credentials.
type SSOPortalAPI interface {
	GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error)
}

// SSOLogin runs the AWS SSO device authorization flow and returns role credentials.
type SSOLogin struct {
	OIDC   SSOOIDCAPI
	Portal SSOPortalAPI

	// Out receives the verification URL and user code.
	Out io.Writer

	// Sleep waits between token polls. Nil means a context-aware time.Sleep.
	Sleep func(context.Context, time.Duration) error
}

// NewSSOLogin builds the SSO clients for region.
func NewSSOLogin(region string, out io.Writer) *SSOLogin {
	return &SSOLogin{
		OIDC:   ssooidc.New(ssooidc.Options{Region: region}),
		Portal: sso.New(sso.Options{Region: region}),
		Out:    out,
	}
}

// Credentials logs in at startURL and returns credentials for role in account.
func (l *SSOLogin) Credentials(ctx context.Context, startURL, account, role string) (aws.Credentials, error) {
	client, err := l.OIDC.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(ssoClientName),
		ClientType: aws.String(ssoClientType),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("registering client: %s", describeAPIError(err))
	}

	auth, err := l.OIDC.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     client.ClientId,
		ClientSecret: client.ClientSecret,
		StartUrl:     aws.String(startURL),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("starting device authorization: %s", describeAPIError(err))
	}

	if l.Out != nil {
		fmt.Fprintf(l.Out, "Open %s and confirm the code %s\n",
			aws.ToString(auth.VerificationUriComplete), aws.ToString(auth.UserCode))
	}

	token, err := l.waitForToken(ctx, client, auth)
	if err != nil {
		return aws.Credentials{}, err
	}

	out, err := l.Portal.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: token,
		AccountId:   aws.String(account),
		RoleName:    aws.String(role),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("getting credentials for %s in %s: %s", role, account, describeAPIError(err))
	}
	if out.RoleCredentials == nil {
		return aws.Credentials{}, fmt.Errorf("no credentials returned for %s in %s", role, account)
	}

	rc := out.RoleCredentials
	return aws.Credentials{
		AccessKeyID:     aws.ToString(rc.AccessKeyId),
		SecretAccessKey: aws.ToString(rc.SecretAccessKey),
		SessionToken:    aws.ToString(rc.SessionToken),
		Source:          "sealkeeper-sso",
		CanExpire:       rc.Expiration > 0,
		Expires:         time.UnixMilli(rc.Expiration),
	}, nil
}

// waitForToken polls CreateToken until the user approves the device or the code expires.
func (l *SSOLogin) waitForToken(ctx context.Context, client *ssooidc.RegisterClientOutput, auth *ssooidc.StartDeviceAuthorizationOutput) (*string, error) {
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = ssoSlowDown
	}
	var waited time.Duration
	deadline := time.Duration(auth.ExpiresIn) * time.Second

	for {
		out, err := l.OIDC.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     client.ClientId,
			ClientSecret: client.ClientSecret,
			GrantType:    aws.String(ssoGrantType),
			DeviceCode:   auth.DeviceCode,
		})
		if err == nil {
			return out.AccessToken, nil
		}

		var pending *oidctypes.AuthorizationPendingException
		var slow *oidctypes.SlowDownException
		switch {
		case errors.As(err, &pending):
		case errors.As(err, &slow):
			interval += ssoSlowDown
		default:
			return nil, fmt.Errorf("creating token: %s", describeAPIError(err))
		}

		if deadline > 0 && waited >= deadline {
			return nil, errors.New("device code expired before the login was confirmed")
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		waited += interval
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
