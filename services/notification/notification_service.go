package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/notification/notification_channel"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
)

// NotificationService routes applicant-facing messages to the right channel.
// Verification codes go out over SES or Twilio depending on the channel the
// applicant picked; decision notices go out over Plunk plus a push to the
// registered device.
type NotificationService struct {
	config *utils.Config
	logger *logging.Logger
	repo   repository.SessionRepository
	push   *notification_channel.PushNotificationService
	plunk  *Plunk
}

func NewNotificationService(config *utils.Config, logger *logging.Logger, repo repository.SessionRepository) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		repo:   repo,
		push:   notification_channel.NewPushNotificationService(logger),
		plunk: &Plunk{
			HttpClient: &http.Client{Timeout: 10 * time.Second},
			Config:     config,
		},
	}
}

type OTPData struct {
	OTP    string
	Name   string
	Expiry string
}

type WelcomeData struct {
	Name          string
	AccountNumber string
	RoutingCode   string
}

type ReviewData struct {
	Name string
}

// SendOTP delivers a verification code over the channel requested in the
// OTP step.
func (n *NotificationService) SendOTP(ctx context.Context, sess *domain.OnboardingSession, code string) error {
	if sess.OTP == nil || sess.Identity == nil {
		return fmt.Errorf("session %s has no contact details for code delivery", sess.ID)
	}

	expiry := fmt.Sprintf("%d minutes", int(utils.OTPValidity.Minutes()))
	channel := notification_channel.FromStepChannel(sess.OTP.Channel)

	if channel == notification_channel.SMS {
		if sess.Identity.Phone == "" {
			return fmt.Errorf("channel %v selected but no phone number on file", channel)
		}

		param := notification_channel.SmsNotification{
			Message:     fmt.Sprintf("Your Meridian Trust verification code is %s. It expires in %s.", code, expiry),
			PhoneNumber: sess.Identity.Phone,
			Config:      n.config,
		}
		return param.SendSMS()
	}

	if sess.Identity.Email == "" {
		return fmt.Errorf("channel %v selected but no email address on file", channel)
	}

	otpTemplate, err := getTemplate(OTPData{
		OTP:    code,
		Name:   sess.Identity.FullName,
		Expiry: expiry,
	}, "otp_verification.html")
	if err != nil {
		return err
	}

	param := notification_channel.EmailNotification{
		Message: otpTemplate.String(),
		Email:   sess.Identity.Email,
		Subject: "Meridian Trust - Verification Code",
		Config:  n.config,
	}
	return param.SendEmail()
}

// SendDecision tells the applicant how their application resolved. Approved
// sessions get the welcome package with their new account details, escalated
// ones get a review notice. Push delivery failing never fails the email.
func (n *NotificationService) SendDecision(ctx context.Context, sess *domain.OnboardingSession) error {
	if sess.Identity == nil || sess.Identity.Email == "" {
		return fmt.Errorf("session %s has no email on file for a decision notice", sess.ID)
	}

	switch sess.Status {
	case domain.StatusApproved:
		if sess.Risk == nil {
			return fmt.Errorf("session %s approved without a risk record", sess.ID)
		}

		body, err := getTemplate(WelcomeData{
			Name:          sess.Identity.FullName,
			AccountNumber: sess.Risk.AccountNumber,
			RoutingCode:   sess.Risk.RoutingCode,
		}, "account_welcome.html")
		if err != nil {
			return err
		}

		if err := n.plunk.SendEmail(sess.Identity.Email, "Welcome to Meridian Trust", body.String()); err != nil {
			return err
		}

		if err := n.plunk.TrackAction(sess.Identity.Email, "onboarding.approved", map[string]any{"session_id": sess.ID}); err != nil {
			n.logger.Error(fmt.Sprintf("failed to track approval for %s: %v", sess.ID, err))
		}

		n.sendDecisionPush(ctx, sess, "Your account is ready", "Your Meridian Trust account has been opened. Welcome aboard.")
		return nil

	case domain.StatusEscalated:
		body, err := getTemplate(ReviewData{
			Name: sess.Identity.FullName,
		}, "application_review.html")
		if err != nil {
			return err
		}

		if err := n.plunk.SendEmail(sess.Identity.Email, "Your application is being reviewed", body.String()); err != nil {
			return err
		}

		n.sendDecisionPush(ctx, sess, "Application under review", "Our team is taking a closer look at your application. We will be in touch shortly.")
		return nil
	}

	// Nothing to announce before the application resolves
	return nil
}

func (n *NotificationService) sendDecisionPush(ctx context.Context, sess *domain.OnboardingSession, title, message string) {
	if n.push == nil {
		return
	}

	device, err := n.repo.GetDeviceForSession(ctx, sess.ID)
	if err != nil || device.PushToken == "" {
		return
	}

	info := &notification_channel.PushNotificationInfo{
		Title:          title,
		Message:        message,
		AnalyticsLabel: "onboarding_decision",
	}
	if device.Platform == string(notification_channel.PushProviderExpo) {
		info.Provider = notification_channel.PushProviderExpo
		info.UserExpoToken = device.PushToken
	} else {
		info.Provider = notification_channel.PushProviderFCM
		info.UserFCMToken = device.PushToken
	}

	if err := n.push.SendPush(info); err != nil {
		n.logger.Error(fmt.Sprintf("failed to push decision notice for %s: %v", sess.ID, err))
	}
}
