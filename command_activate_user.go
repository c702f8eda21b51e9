package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type ActivateUserMessage struct {
	Token      string `json:"activation_token"`
	Code       string `json:"activation_code"`
	OnResponse func(*ActivateUserResponse)
}

func (e ActivateUserMessage) Type() string { return "user.activate" }

func (e ActivateUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Code, validation.Required, validation.Length(4, 4), is.Digit),
	)
}

// ActivateUserResponse carries the account created by a successful
// activation.
type ActivateUserResponse struct {
	User *User `json:"user"`
}

// ActivateUserHandler promotes a verified pending registration into a
// persisted account. The flow is single-use in effect: a second activation
// with the same token loses on the store's unique constraints.
type ActivateUserHandler struct {
	repo      RepositoryManager
	codec     *ActivationCodec
	logger    Logger
	useHashid bool
}

func NewActivateUserHandler(repo RepositoryManager, codec *ActivationCodec) *ActivateUserHandler {
	return &ActivateUserHandler{
		repo:   repo,
		codec:  codec,
		logger: defLogger{},
	}
}

func (h *ActivateUserHandler) WithLogger(logger Logger) *ActivateUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithHashid derives the account ID deterministically from the email instead
// of a random UUID, which makes replayed activations collide on the primary
// key as well as the unique columns.
func (h *ActivateUserHandler) WithHashid() *ActivateUserHandler {
	h.useHashid = true
	return h
}

func (h *ActivateUserHandler) Execute(ctx context.Context, event ActivateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateUserHandler) execute(ctx context.Context, event ActivateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	claims, err := h.codec.Verify(event.Token)
	if err != nil {
		return err
	}

	if claims.Code != event.Code {
		return ErrInvalidActivationCode
	}

	user := NewUserFromPending(claims.Pending)
	if h.useHashid {
		if id, err := hashid.NewUUID(claims.Pending.Email); err == nil {
			user.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// The pre-check gives a friendlier error on the common retry path;
		// the unique constraints on the insert are what make concurrent
		// activations safe.
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, claims.Pending.Email); err == nil {
			return ErrEmailExists
		} else if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to re-check email uniqueness")
		}

		created, err := h.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			return err
		}

		user = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&ActivateUserResponse{User: user})
	}

	return nil
}
