package aws

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lago-morph/mk8/internal/creds"
)

type fakeSTS struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.out, f.err
}

func fakeClient(api callerIdentityAPI) *Client {
	return &Client{newAPI: func(ctx context.Context, set creds.Credentials) (callerIdentityAPI, error) {
		return api, nil
	}}
}

func stringPtr(s string) *string { return &s }

func TestValidateCredentialsValid(t *testing.T) {
	client := fakeClient(&fakeSTS{out: &sts.GetCallerIdentityOutput{Account: stringPtr("123456789012")}})

	result, err := client.ValidateCredentials(context.Background(), creds.Credentials{
		AccessKeyID:     "AKIAEXAMPLEKEY",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
	})
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, "123456789012", result.AccountID)
	assert.Empty(t, result.ErrorCode)
	assert.Nil(t, result.Suggestions())
}

func TestValidateCredentialsAPIError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{
		Code:    "InvalidClientTokenId",
		Message: "The security token included in the request is invalid.",
	}
	client := fakeClient(&fakeSTS{err: apiErr})

	result, err := client.ValidateCredentials(context.Background(), creds.Credentials{Region: "us-east-1"})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, "InvalidClientTokenId", result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "security token")
}

func TestValidateCredentialsNetworkError(t *testing.T) {
	client := fakeClient(&fakeSTS{err: errors.New("dial tcp: lookup sts.us-east-1.amazonaws.com: no such host")})

	result, err := client.ValidateCredentials(context.Background(), creds.Credentials{Region: "us-east-1"})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, "NetworkError", result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "network error")
}

func TestSuggestionsByErrorCode(t *testing.T) {
	tests := []struct {
		code     string
		fragment string
	}{
		{"InvalidClientTokenId", "Access Key ID"},
		{"SignatureDoesNotMatch", "Secret Access Key"},
		{"AccessDenied", "sts:GetCallerIdentity"},
		{"InvalidToken", "expired"},
		{"UnrecognizedClientException", "region"},
		{"SomethingElse", "credentials and permissions"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			result := ValidationResult{ErrorCode: tt.code}
			suggestions := result.Suggestions()
			require.NotEmpty(t, suggestions)

			found := false
			for _, s := range suggestions {
				if strings.Contains(strings.ToLower(s), strings.ToLower(tt.fragment)) {
					found = true
				}
			}
			assert.True(t, found, "expected a suggestion mentioning %q, got %v", tt.fragment, suggestions)
		})
	}
}

