package sms

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsAPI is the slice of the SNS client used here, kept narrow so tests
// can fake it.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends SMS by publishing directly to a phone number.
type SNSSender struct {
	client   snsAPI
	senderID string
}

// NewSNSSender creates an SNS-backed SMS sender using the default AWS
// credential chain.
func NewSNSSender(ctx context.Context, cfg Config) (*SNSSender, error) {
	if cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &SNSSender{client: sns.NewFromConfig(awsCfg), senderID: cfg.SenderID}, nil
}

// NewSNSSenderWithClient creates a sender over an existing client.
func NewSNSSenderWithClient(client snsAPI, senderID string) *SNSSender {
	return &SNSSender{client: client, senderID: senderID}
}

func (s *SNSSender) Send(ctx context.Context, phone, message string) (string, error) {
	if err := validate(phone, message); err != nil {
		return "", err
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return "", errors.Join(ErrSendFailed, err)
	}
	return aws.ToString(out.MessageId), nil
}
