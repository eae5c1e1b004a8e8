package storage

import (
	"context"
	"errors"
	"net"

	"github.com/minio/minio-go/v7"
)

// Классы ошибок хранилища для диагностики.
const (
	ProbeOK            = "ok"
	ProbeUnreachable   = "unreachable"
	ProbeAuthFailed    = "auth_failed"
	ProbeMissingBucket = "missing_bucket"
	ProbeError         = "error"
)

// Classify сводит ошибку Probe к одному из классов Probe*.
func Classify(err error) string {
	if err == nil {
		return ProbeOK
	}
	if errors.Is(err, ErrBucketNotFound) {
		return ProbeMissingBucket
	}

	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken", "ExpiredToken":
		return ProbeAuthFailed
	case "NoSuchBucket":
		return ProbeMissingBucket
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ProbeUnreachable
	}
	return ProbeError
}
