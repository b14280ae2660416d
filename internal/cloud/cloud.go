package cloud

import (
	"context"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Options selects the AWS account and endpoints sealkeeper talks to.
type Options struct {
	Region  string
	Profile string

	// Endpoint overrides the Secrets Manager, S3 and STS endpoints (LocalStack).
	Endpoint string

	// SSOLogin runs an AWS SSO device login and uses the role credentials it returns.
	SSOLogin     bool
	SSOStartURL  string
	SSORegion    string
	SSOAccountID string
	SSORoleName  string
}

// Clients are the SDK clients built from one resolved aws.Config.
type Clients struct {
	Region         string
	Credentials    aws.CredentialsProvider
	SecretsManager *secretsmanager.Client
	S3             *s3.Client
	STS            *sts.Client
}

// STSAPI is the subset of *sts.Client used to resolve the caller identity.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// CallerIdentity is the principal the loaded credentials resolve to.
type CallerIdentity struct {
	Account string
	ARN     string
	UserID  string
}

// ssoLogin is replaced in tests.
var ssoLogin = func(ctx context.Context, opts Options) (aws.Credentials, error) {
	return NewSSOLogin(opts.SSORegion, os.Stderr).Credentials(ctx, opts.SSOStartURL, opts.SSOAccountID, opts.SSORoleName)
}

// Load resolves credentials and region and builds the SDK clients.
// With SSOLogin set, the SSO role credentials replace the default chain.
func Load(ctx context.Context, opts Options) (*Clients, error) {
	var configOpts []func(*config.LoadOptions) error

	if opts.SSOLogin {
		for _, setting := range [][2]string{
			{"aws.sso_start_url", opts.SSOStartURL},
			{"aws.sso_account_id", opts.SSOAccountID},
			{"aws.sso_role_name", opts.SSORoleName},
		} {
			if setting[1] == "" {
				return nil, fmt.Errorf("%w: %s is not configured", kerrors.ErrSSOLoginFailed, setting[0])
			}
		}
		if opts.SSORegion == "" {
			opts.SSORegion = opts.Region
		}
		creds, err := ssoLogin(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrSSOLoginFailed, err)
		}
		configOpts = append(configOpts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{Value: creds}))
	}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrMissingCredentials, err)
	}
	if awsCfg.Region == "" {
		return nil, kerrors.ErrMissingRegion
	}

	clients := NewClients(awsCfg, opts.Endpoint)
	clients.Credentials = awsCfg.Credentials
	return clients, nil
}

// NewClients builds the SDK clients from awsCfg, pointing them at endpoint when set.
func NewClients(awsCfg aws.Config, endpoint string) *Clients {
	return &Clients{
		Region: awsCfg.Region,
		SecretsManager: secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		S3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		}),
		STS: sts.NewFromConfig(awsCfg, func(o *sts.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
	}
}

// Identity returns the caller identity, or ErrMissingCredentials when the
// credentials cannot be used.
func Identity(ctx context.Context, api STSAPI) (*CallerIdentity, error) {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrMissingCredentials, describeAPIError(err))
	}
	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}
