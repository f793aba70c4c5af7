package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsAPI interface {
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSProvider implements Provider on SNS platform endpoints.
type SNSProvider struct {
	client         snsAPI
	platformAppARN string
}

// NewSNSProvider creates an SNS push provider using the default AWS
// credential chain.
func NewSNSProvider(ctx context.Context, cfg Config) (*SNSProvider, error) {
	if cfg.Region == "" || cfg.PlatformAppARN == "" {
		return nil, fmt.Errorf("%w: Region and PlatformAppARN are required", ErrInvalidConfig)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &SNSProvider{client: sns.NewFromConfig(awsCfg), platformAppARN: cfg.PlatformAppARN}, nil
}

// NewSNSProviderWithClient creates a provider over an existing client.
func NewSNSProviderWithClient(client snsAPI, platformAppARN string) *SNSProvider {
	return &SNSProvider{client: client, platformAppARN: platformAppARN}
}

func (p *SNSProvider) RegisterDevice(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	out, err := p.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(p.platformAppARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		var invalidParam *snstypes.InvalidParameterException
		if errors.As(err, &invalidParam) {
			return "", errors.Join(ErrInvalidToken, err)
		}
		return "", errors.Join(ErrSendFailed, err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (p *SNSProvider) Send(ctx context.Context, endpoint string, payload Payload) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%w: empty endpoint", ErrInvalidToken)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Join(ErrSendFailed, err)
	}
	// SNS fans one JSON document out per platform; default covers both
	// GCM and APNS since the payload is platform-neutral.
	wrapper, err := json.Marshal(map[string]string{"default": string(body)})
	if err != nil {
		return "", errors.Join(ErrSendFailed, err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpoint),
		Message:          aws.String(string(wrapper)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		var disabled *snstypes.EndpointDisabledException
		var notFound *snstypes.NotFoundException
		if errors.As(err, &disabled) || errors.As(err, &notFound) {
			return "", errors.Join(ErrInvalidToken, err)
		}
		return "", errors.Join(ErrSendFailed, err)
	}
	return aws.ToString(out.MessageId), nil
}
