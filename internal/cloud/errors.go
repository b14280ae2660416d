package cloud

import (
	"errors"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// IsNotFound reports whether err is a Secrets Manager or S3 not-found error.
func IsNotFound(err error) bool {
	var rnf *smtypes.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return true
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException", "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

// describeAPIError returns "Code: message" for service errors and the plain
// error text otherwise.
func describeAPIError(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.ErrorMessage(); msg != "" {
			return apiErr.ErrorCode() + ": " + msg
		}
		return apiErr.ErrorCode()
	}
	return err.Error()
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, kerrors.ErrRecordNotFound)
}
