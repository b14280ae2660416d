package cloudtest

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STS returns a fixed caller identity, or Err.
type STS struct {
	Account string
	ARN     string
	Err     error
}

// NewSTS returns a fake for a test principal.
func NewSTS() *STS {
	return &STS{
		Account: "123456789012",
		ARN:     "arn:aws:iam::123456789012:user/operator",
	}
}

func (f *STS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.ARN),
		UserId:  aws.String("AIDATEST"),
	}, nil
}
