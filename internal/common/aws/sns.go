package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSClient publishes transactional SMS.
type SNSClient struct {
	client   *sns.Client
	senderID string
}

func NewSNSClient(ctx context.Context, region, senderID string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

// Publish satisfies the SDK-shaped interface the notification worker depends on.
func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if s.senderID != "" {
		if input.MessageAttributes == nil {
			input.MessageAttributes = map[string]types.MessageAttributeValue{}
		}
		if _, ok := input.MessageAttributes["AWS.SNS.SMS.SenderID"]; !ok {
			input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			}
		}
	}
	return s.client.Publish(ctx, input, optFns...)
}

// TransactionalSMS builds a PublishInput for a direct-to-phone message.
func TransactionalSMS(phone, message string) *sns.PublishInput {
	return &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
}
