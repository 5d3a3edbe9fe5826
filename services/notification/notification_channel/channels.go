package notification_channel

// Channel represents the type of notification channel
type Channel string

const (
	EMAIL Channel = "EMAIL"
	SMS   Channel = "SMS"
	PUSH  Channel = "PUSH"
)

// FromStepChannel maps the lowercase channel names carried in OTP step
// payloads onto delivery channels. Unknown values fall back to EMAIL.
func FromStepChannel(channel string) Channel {
	switch channel {
	case "sms":
		return SMS
	case "email":
		return EMAIL
	default:
		return EMAIL
	}
}
