package identity_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/kunkhmer/go-identity"
)

var testSigningKey = []byte("test-signing-key-0123456789")

func testPending() identity.PendingRegistration {
	hash, _ := identity.HashPassword("password123")
	return identity.PendingRegistration{
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: hash,
		Phone:        "+12125550100",
	}
}

func TestActivationCodecMintAndVerify(t *testing.T) {
	codec := identity.NewActivationCodec(testSigningKey, "go-identity")

	pending := testPending()

	token, code, err := codec.Mint(pending)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	t.Run("code is four digits", func(t *testing.T) {
		require.Len(t, code, 4)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	})

	t.Run("round trip preserves the pending payload", func(t *testing.T) {
		claims, err := codec.Verify(token)
		require.NoError(t, err)

		assert.Equal(t, pending.Name, claims.Pending.Name)
		assert.Equal(t, pending.Email, claims.Pending.Email)
		assert.Equal(t, pending.PasswordHash, claims.Pending.PasswordHash)
		assert.Equal(t, pending.Phone, claims.Pending.Phone)
		assert.Equal(t, code, claims.Code)
	})

	t.Run("token is opaque but not secret-free", func(t *testing.T) {
		// A tampered token must fail signature verification.
		tampered := []byte(token)
		tampered[len(tampered)-2] ^= 0x01

		_, err := codec.Verify(string(tampered))
		assert.ErrorIs(t, err, identity.ErrActivationTokenInvalid)
	})

	t.Run("wrong signing key is rejected", func(t *testing.T) {
		other := identity.NewActivationCodec([]byte("a-different-signing-key"), "go-identity")
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, identity.ErrActivationTokenInvalid)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := codec.Verify("not.a.token")
		assert.ErrorIs(t, err, identity.ErrActivationTokenInvalid)
	})
}

func TestActivationCodecExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	codec := identity.NewActivationCodec(testSigningKey, "go-identity",
		identity.WithActivationClock(clock),
	)

	token, _, err := codec.Mint(testPending())
	require.NoError(t, err)

	t.Run("valid until the TTL elapses", func(t *testing.T) {
		now = now.Add(identity.DefaultActivationTTL - time.Second)
		_, err := codec.Verify(token)
		assert.NoError(t, err)
	})

	t.Run("expired one second past the TTL", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, identity.ErrActivationTokenExpired)
	})
}

func TestActivationCodecTTLOption(t *testing.T) {
	codec := identity.NewActivationCodec(testSigningKey, "go-identity",
		identity.WithActivationTTL(time.Minute),
	)
	assert.Equal(t, time.Minute, codec.TTL())

	def := identity.NewActivationCodec(testSigningKey, "go-identity")
	assert.Equal(t, identity.DefaultActivationTTL, def.TTL())
}

func TestActivationCodesVary(t *testing.T) {
	codec := identity.NewActivationCodec(testSigningKey, "go-identity")

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		_, code, err := codec.Mint(testPending())
		require.NoError(t, err)
		seen[code] = true
	}

	// 20 draws from 9000 values colliding down to a single code would mean
	// the generator is broken.
	assert.Greater(t, len(seen), 1)
}
