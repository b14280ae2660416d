// Package cloudtest provides in-memory fakes of the Secrets Manager, S3
// and STS APIs consumed by package cloud.
package cloudtest

import "github.com/PolarWolf314/sealkeeper/internal/cloud"

var (
	_ cloud.SecretsManagerAPI = (*SecretsManager)(nil)
	_ cloud.S3API             = (*S3)(nil)
	_ cloud.STSAPI            = (*STS)(nil)
)
