package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	lastInput *sns.PublishInput
	err       error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestValidNumber(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidNumber("+2348012345678"))
	assert.True(t, ValidNumber("+14155550123"))
	assert.False(t, ValidNumber("08012345678"), "missing country code")
	assert.False(t, ValidNumber("+0123"), "leading zero")
	assert.False(t, ValidNumber("not a number"))
}

func TestSNSSender_Send(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("publishes transactional message", func(t *testing.T) {
		t.Parallel()
		fake := &fakeSNS{}
		sender := NewSNSSenderWithClient(fake, "PAYROLL")

		id, err := sender.Send(ctx, "+2348012345678", "Your payslip is ready")
		require.NoError(t, err)
		assert.Equal(t, "msg-123", id)

		require.NotNil(t, fake.lastInput)
		assert.Equal(t, "+2348012345678", aws.ToString(fake.lastInput.PhoneNumber))
		assert.Equal(t, "Transactional", aws.ToString(fake.lastInput.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
		assert.Equal(t, "PAYROLL", aws.ToString(fake.lastInput.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	})

	t.Run("rejects malformed number", func(t *testing.T) {
		t.Parallel()
		sender := NewSNSSenderWithClient(&fakeSNS{}, "")

		_, err := sender.Send(ctx, "12345", "hello")
		require.ErrorIs(t, err, ErrInvalidNumber)
	})

	t.Run("wraps provider failures", func(t *testing.T) {
		t.Parallel()
		fake := &fakeSNS{err: errors.New("throttled")}
		sender := NewSNSSenderWithClient(fake, "")

		_, err := sender.Send(ctx, "+2348012345678", "hello")
		require.ErrorIs(t, err, ErrSendFailed)
	})
}
