package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Service implements OTP and password login, signup and logout.
type Service struct {
	store    *records.Store
	sessions *SessionStore
	otps     *OTPStore
	sink     notify.Sink
	logger   *logging.Logger
	now      func() time.Time
}

// NewService wires the auth flows. sink may be nil, in which case OTPs and
// greetings are not delivered.
func NewService(store *records.Store, sessions *SessionStore, otps *OTPStore, sink notify.Sink, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, sessions: sessions, otps: otps, sink: sink, logger: logger, now: time.Now}
}

// OTPRequest names the contact a code is sent to. Phone wins when both are set.
type OTPRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

func (r OTPRequest) contact() string {
	if p := strings.TrimSpace(r.Phone); p != "" {
		return p
	}
	return strings.TrimSpace(r.Email)
}

// RequestOTP issues a code and sends it by SMS or email.
func (s *Service) RequestOTP(ctx context.Context, req OTPRequest) (time.Duration, error) {
	contact := req.contact()
	if contact == "" {
		return 0, &InputError{Message: "phone/email required"}
	}
	code, err := s.otps.Issue(ctx, contact)
	if err != nil {
		return 0, err
	}
	s.logger.Info("otp issued", "contact", contact)
	if s.sink != nil {
		recipient := records.User{Name: contact, Phone: strings.TrimSpace(req.Phone), Email: strings.TrimSpace(req.Email)}
		go func() {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if res := s.sink.Send(sendCtx, recipient, notify.KindOTP, notify.TemplateData{Code: code}); !res.Success {
				s.logger.Warn("otp delivery failed", "contact", contact, "error", res.Error)
			}
		}()
	}
	return s.otps.TTL(), nil
}

// VerifyOTP checks the code, creating the account on first login, and starts a session.
func (s *Service) VerifyOTP(ctx context.Context, req OTPRequest) (records.User, string, error) {
	contact := req.contact()
	if contact == "" || strings.TrimSpace(req.Code) == "" {
		return records.User{}, "", &InputError{Message: "missing"}
	}
	if err := s.otps.Verify(ctx, contact, strings.TrimSpace(req.Code)); err != nil {
		return records.User{}, "", err
	}

	user, err := s.store.FindUserByContact(ctx, contact)
	if errors.Is(err, records.ErrNotFound) {
		phone := strings.TrimSpace(req.Phone)
		if phone == "" {
			phone = contact
		}
		user = records.User{
			ID:               uuid.NewString(),
			Name:             contact,
			Email:            strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:            phone,
			Status:           records.UserActive,
			RegistrationDate: s.now().UTC(),
		}
		if err = s.store.Users.Insert(ctx, user); err != nil {
			return records.User{}, "", err
		}
		s.logger.Info("user created from otp login", "user_id", user.ID)
	} else if err != nil {
		return records.User{}, "", err
	}
	return s.startSession(ctx, user)
}

// SignupRequest is the registration form.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	MarketingOptIn  bool   `json:"marketingOptIn"`
}

// Signup registers a password account and logs it in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (records.User, string, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	switch {
	case name == "" || phone == "":
		return records.User{}, "", &InputError{Message: "name and phone required"}
	case len(req.Password) < 6:
		return records.User{}, "", &InputError{Message: "password too short"}
	case req.Password != req.ConfirmPassword:
		return records.User{}, "", &InputError{Message: "passwords do not match"}
	}

	users, err := s.store.Users.List(ctx)
	if err != nil {
		return records.User{}, "", err
	}
	for _, u := range users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return records.User{}, "", &InputError{Message: "Email already exists"}
		}
		if u.Phone == phone {
			return records.User{}, "", &InputError{Message: "Phone already registered"}
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return records.User{}, "", err
	}
	user := records.User{
		ID:               uuid.NewString(),
		Name:             name,
		Email:            email,
		Phone:            phone,
		Status:           records.UserActive,
		PasswordHash:     hash,
		RegistrationDate: s.now().UTC(),
		Metadata:         map[string]string{"marketingOptIn": fmt.Sprint(req.MarketingOptIn)},
	}
	if err := s.store.Users.Insert(ctx, user); err != nil {
		return records.User{}, "", err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return s.startSession(ctx, user)
}

// Login authenticates by email, phone or user id plus password. A greeting
// is sent in the background on success.
func (s *Service) Login(ctx context.Context, identifier, password string) (records.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return records.User{}, "", &InputError{Message: "identifier and password required"}
	}
	user, err := s.store.FindUserByContact(ctx, identifier)
	if errors.Is(err, records.ErrNotFound) {
		return records.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return records.User{}, "", err
	}
	if user.PasswordHash == "" {
		return records.User{}, "", ErrNoPassword
	}
	if !CheckPassword(user.PasswordHash, password) {
		return records.User{}, "", ErrInvalidCredentials
	}
	user, sessionID, err := s.startSession(ctx, user)
	if err != nil {
		return records.User{}, "", err
	}
	notify.SendGreeting(ctx, s.sink, user, s.logger)
	return user, sessionID, nil
}

func (s *Service) startSession(ctx context.Context, user records.User) (records.User, string, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return records.User{}, "", err
	}
	return user, sessionID, nil
}

// Logout ends the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

// Me returns the user behind the current request.
func (s *Service) Me(ctx context.Context) (records.User, error) {
	userID, ok := CurrentUserID(ctx)
	if !ok {
		return records.User{}, ErrNoSession
	}
	return s.store.Users.Get(ctx, userID)
}
