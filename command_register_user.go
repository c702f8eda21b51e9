package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// ActivationEmailTemplate is the template name handed to the Mailer.
const ActivationEmailTemplate = "activation-mail"

type RegisterUserMessage struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone_number"`
	OnResponse func(*RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&e.Phone, validation.Required, validation.By(ValidatePhoneNumber)),
	)
}

// RegisterUserResponse carries the opaque activation token back to the
// caller. The matching code is never part of this response; it only travels
// by email.
type RegisterUserResponse struct {
	ActivationToken string    `json:"activation_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// RegisterUserHandler runs the registration flow: uniqueness checks, password
// hashing, token minting, and best-effort email dispatch. No account row is
// written here.
type RegisterUserHandler struct {
	repo   RepositoryManager
	codec  *ActivationCodec
	mailer Mailer
	logger Logger
}

func NewRegisterUserHandler(repo RepositoryManager, codec *ActivationCodec, mailer Mailer) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		codec:  codec,
		mailer: mailer,
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	phone := NormalizePhoneNumber(event.Phone)

	if _, err := h.repo.Users().GetByEmail(ctx, event.Email); err == nil {
		return ErrEmailExists
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
	}

	if _, err := h.repo.Users().GetByPhone(ctx, phone); err == nil {
		return ErrPhoneExists
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check phone uniqueness")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	pending := PendingRegistration{
		Name:         event.Name,
		Email:        event.Email,
		PasswordHash: hash,
		Phone:        phone,
	}

	token, code, err := h.codec.Mint(pending)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint activation token")
	}

	// Delivery is fire-and-forget: a failed send is logged but the caller
	// still receives its token, so the registration response never blocks
	// on SMTP.
	go h.dispatchActivationMail(event.Name, event.Email, code)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			ActivationToken: token,
			ExpiresAt:       h.codec.Now().Add(h.codec.TTL()),
		})
	}

	return nil
}

func (h *RegisterUserHandler) dispatchActivationMail(name, email, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	err := h.mailer.Send(ctx, ActivationEmailTemplate, email, map[string]any{
		"name":           name,
		"activationCode": code,
	})
	if err != nil {
		h.logger.Error("activation email delivery failed",
			"error", err,
			"recipient", email,
			"text_code", TextCodeDelivery,
		)
	}
}
