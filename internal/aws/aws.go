// Package aws validates AWS credentials against the live STS API.
package aws

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/lago-morph/mk8/internal/creds"
)

// validationTimeout bounds the STS round trip for fast feedback.
const validationTimeout = 10 * time.Second

// ValidationResult is the outcome of a GetCallerIdentity probe.
type ValidationResult struct {
	Valid        bool
	AccountID    string
	ErrorCode    string
	ErrorMessage string
}

// Suggestions returns remediation hints for the validation failure, keyed by
// AWS error code.
func (r ValidationResult) Suggestions() []string {
	if r.Valid {
		return nil
	}
	switch r.ErrorCode {
	case "InvalidClientTokenId":
		return []string{
			"Verify your AWS Access Key ID is correct",
			"Check whether the credentials were deactivated in IAM",
			"Run 'mk8 config' to update credentials",
		}
	case "SignatureDoesNotMatch":
		return []string{
			"Verify your AWS Secret Access Key is correct",
			"Run 'mk8 config' to update credentials",
		}
	case "AccessDenied":
		return []string{
			"Ensure the IAM user or role has 'sts:GetCallerIdentity' permission",
			"Check the IAM policies attached to your credentials",
		}
	case "InvalidToken":
		return []string{
			"The token may have expired; regenerate credentials",
			"Run 'mk8 config' to update credentials",
		}
	case "UnrecognizedClientException":
		return []string{
			"Verify the region is correct",
			"Check AWS service availability in your region",
		}
	default:
		return []string{
			"Check your AWS credentials and permissions",
			"Run 'mk8 config' to reconfigure credentials",
		}
	}
}

// callerIdentityAPI is the subset of the STS client used here.
type callerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Client validates credentials via STS GetCallerIdentity.
type Client struct {
	// newAPI builds the STS client for a credential set; replaced in tests.
	newAPI func(ctx context.Context, set creds.Credentials) (callerIdentityAPI, error)
}

// NewClient constructs an AWS validation client.
func NewClient() *Client {
	return &Client{newAPI: newSTSClient}
}

// ValidateCredentials probes STS GetCallerIdentity with the given static
// credentials. Invalid credentials are a result, not an error; only setup
// failures return an error.
func (c *Client) ValidateCredentials(ctx context.Context, set creds.Credentials) (ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	api, err := c.newAPI(ctx, set)
	if err != nil {
		return ValidationResult{}, err
	}

	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return resultFromError(err), nil
	}
	return ValidationResult{Valid: true, AccountID: aws.ToString(out.Account)}, nil
}

// resultFromError classifies an STS failure into a ValidationResult.
func resultFromError(err error) ValidationResult {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return ValidationResult{
			ErrorCode:    apiErr.ErrorCode(),
			ErrorMessage: apiErr.ErrorMessage(),
		}
	}
	return ValidationResult{
		ErrorCode:    "NetworkError",
		ErrorMessage: "network error: " + err.Error(),
	}
}

// newSTSClient builds a real STS client with retries disabled so invalid
// credentials fail fast.
func newSTSClient(ctx context.Context, set creds.Credentials) (callerIdentityAPI, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(set.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			set.AccessKeyID, set.SecretAccessKey, "",
		)),
		config.WithRetryer(func() aws.Retryer { return retry.NewStandard(func(o *retry.StandardOptions) { o.MaxAttempts = 1 }) }),
	)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(cfg), nil
}
