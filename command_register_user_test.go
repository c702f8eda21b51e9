package identity_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	identity "github.com/kunkhmer/go-identity"
)

func validRegisterMessage() identity.RegisterUserMessage {
	return identity.RegisterUserMessage{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
		Phone:    "+12125550100",
	}
}

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a token and emails the code", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")
		mailer := NewRecordingMailer()

		handler := identity.NewRegisterUserHandler(repo, codec, mailer)

		var res *identity.RegisterUserResponse
		msg := validRegisterMessage()
		msg.OnResponse = func(r *identity.RegisterUserResponse) { res = r }

		require.NoError(t, handler.Execute(ctx, msg))
		require.NotNil(t, res)
		require.NotEmpty(t, res.ActivationToken)
		assert.WithinDuration(t, time.Now().Add(identity.DefaultActivationTTL), res.ExpiresAt, 5*time.Second)

		sent := mailer.WaitForSend(t)
		assert.Equal(t, identity.ActivationEmailTemplate, sent.Template)
		assert.Equal(t, "test@example.com", sent.Recipient)

		code, ok := sent.Context["activationCode"].(string)
		require.True(t, ok)
		require.Len(t, code, 4)

		// The token embeds the same code the email carries, and the stored
		// password is a hash, never the plaintext.
		claims, err := codec.Verify(res.ActivationToken)
		require.NoError(t, err)
		assert.Equal(t, code, claims.Code)
		assert.Equal(t, "test@example.com", claims.Pending.Email)
		assert.Equal(t, "+12125550100", claims.Pending.Phone)
		assert.NotEqual(t, "password123", claims.Pending.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword(
			[]byte(claims.Pending.PasswordHash), []byte("password123"),
		))

		// Registration never writes an account row.
		users, err := repo.Users().ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("normalizes the phone number before minting", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")

		handler := identity.NewRegisterUserHandler(repo, codec, NewRecordingMailer())

		var res *identity.RegisterUserResponse
		msg := validRegisterMessage()
		msg.Phone = "(212) 555-0100"
		msg.OnResponse = func(r *identity.RegisterUserResponse) { res = r }

		require.NoError(t, handler.Execute(ctx, msg))

		claims, err := codec.Verify(res.ActivationToken)
		require.NoError(t, err)
		assert.Equal(t, "+12125550100", claims.Pending.Phone)
	})

	t.Run("mailer failure does not fail the registration", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")
		mailer := NewRecordingMailer().FailWith(
			goerrors.New("smtp down", goerrors.CategoryOperation),
		)

		handler := identity.NewRegisterUserHandler(repo, codec, mailer)

		var res *identity.RegisterUserResponse
		msg := validRegisterMessage()
		msg.OnResponse = func(r *identity.RegisterUserResponse) { res = r }

		require.NoError(t, handler.Execute(ctx, msg))
		require.NotNil(t, res)
		assert.NotEmpty(t, res.ActivationToken)

		mailer.WaitForSend(t)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")

		_, err := repo.Users().Create(ctx, &identity.User{
			Name:  "Existing",
			Email: "test@example.com",
			Phone: "+12125550199",
		})
		require.NoError(t, err)

		handler := identity.NewRegisterUserHandler(repo, codec, NewRecordingMailer())

		err = handler.Execute(ctx, validRegisterMessage())
		assert.ErrorIs(t, err, identity.ErrEmailExists)
	})

	t.Run("duplicate phone is rejected", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")

		_, err := repo.Users().Create(ctx, &identity.User{
			Name:  "Existing",
			Email: "other@example.com",
			Phone: "+12125550100",
		})
		require.NoError(t, err)

		handler := identity.NewRegisterUserHandler(repo, codec, NewRecordingMailer())

		err = handler.Execute(ctx, validRegisterMessage())
		assert.ErrorIs(t, err, identity.ErrPhoneExists)
	})

	t.Run("validation failures carry field metadata", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")

		handler := identity.NewRegisterUserHandler(repo, codec, NewRecordingMailer())

		cases := []struct {
			name  string
			field string
			edit  func(*identity.RegisterUserMessage)
		}{
			{"missing name", "name", func(m *identity.RegisterUserMessage) { m.Name = "" }},
			{"bad email", "email", func(m *identity.RegisterUserMessage) { m.Email = "not-an-email" }},
			{"short password", "password", func(m *identity.RegisterUserMessage) { m.Password = "short" }},
			{"bad phone", "phone_number", func(m *identity.RegisterUserMessage) { m.Phone = "12" }},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				msg := validRegisterMessage()
				tc.edit(&msg)

				err := handler.Execute(ctx, msg)
				require.Error(t, err)

				var richErr *goerrors.Error
				require.True(t, goerrors.As(err, &richErr))
				assert.Equal(t, identity.TextCodeValidation, richErr.TextCode)
				assert.Contains(t, richErr.Metadata, tc.field)
			})
		}
	})

	t.Run("cancelled context stops the flow", func(t *testing.T) {
		db := newTestDB(t)
		repo := identity.NewRepositoryManager(db)
		codec := identity.NewActivationCodec(testSigningKey, "go-identity")

		handler := identity.NewRegisterUserHandler(repo, codec, NewRecordingMailer())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, validRegisterMessage())
		assert.Error(t, err)
	})
}
