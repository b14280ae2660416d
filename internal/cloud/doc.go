// Package cloud wraps the AWS services sealkeeper depends on.
//
// Load resolves credentials the way the AWS CLI does (environment, shared
// profile, SSO cache), optionally running an AWS SSO device login first,
// and builds Secrets Manager, S3 and STS clients. An endpoint override
// points all three at LocalStack.
//
// SecretStore and ObjectStore take the small SecretsManagerAPI and S3API
// interfaces rather than SDK clients, so workflows can run against the
// fakes in package cloudtest. Every Secrets Manager write carries a fresh
// ClientRequestToken; a retried call with the same token is a no-op.
package cloud
