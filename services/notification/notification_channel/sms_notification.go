package notification_channel

import (
	"fmt"

	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type SmsNotification struct {
	Message     string        `json:"message"`
	PhoneNumber string        `json:"phone_number"`
	Config      *utils.Config `json:"config"`
}

// SendSMS delivers the message through the Twilio Messages API. Codes are
// generated and hashed on our side, so plain messaging is used rather than
// the hosted verification product.
func (s *SmsNotification) SendSMS() error {
	if s.Config.TwilioAccountSID == "" || s.Config.TwilioAuthToken == "" {
		return fmt.Errorf("twilio credentials are not configured")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: s.Config.TwilioAccountSID,
		Password: s.Config.TwilioAuthToken,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(s.PhoneNumber)
	params.SetFrom(s.Config.TwilioSender)
	params.SetBody(s.Message)

	_, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio message send failed: %w", err)
	}

	return nil
}
