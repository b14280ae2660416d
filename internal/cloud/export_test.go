package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// SetSSOLogin replaces the SSO login for a test and returns a restore func.
func SetSSOLogin(fn func(context.Context, Options) (aws.Credentials, error)) func() {
	saved := ssoLogin
	ssoLogin = fn
	return func() { ssoLogin = saved }
}
