package notification_channel

import (
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

type EmailNotification struct {
	Message string        `json:"message"`
	Email   string        `json:"email"`
	Subject string        `json:"subject"`
	Config  *utils.Config `json:"config"`
}

// SendEmail delivers the rendered HTML body over AWS SES using the static
// credentials from the environment.
func (e *EmailNotification) SendEmail() error {
	sess := session.Must(session.NewSession(
		&aws.Config{
			Region:      aws.String(e.Config.AWSRegion),
			Credentials: credentials.NewStaticCredentials(e.Config.AWSAccessKeyID, e.Config.AWSSecretAccessKey, ""),
		},
	))

	svc := ses.New(sess)

	_, err := svc.SendEmail(&ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{
				aws.String(e.Email),
			},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(e.Message),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(e.Subject),
			},
		},
		Source: aws.String(e.Config.OTPSourceMail),
	})
	return err
}
