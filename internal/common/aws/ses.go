package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient sends plain-text UTF-8 mail through SES.
type SESClient struct {
	client *ses.Client
	from   string
}

func NewSESClient(ctx context.Context, region, from string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg), from: from}, nil
}

// SendEmail satisfies the SDK-shaped interface the notification worker depends on.
func (s *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if input.Source == nil && s.from != "" {
		input.Source = aws.String(s.from)
	}
	return s.client.SendEmail(ctx, input, optFns...)
}

// TextEmail builds a SendEmailInput with a UTF-8 text body.
func TextEmail(from, to, subject, body string) *ses.SendEmailInput {
	in := &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	}
	if from != "" {
		in.Source = aws.String(from)
	}
	return in
}
