// Package identity implements a user-identity service built around a
// stateless email-activation protocol.
//
// Registration never writes a pending account to the store. Instead the
// pending payload (name, email, password hash, phone number) is sealed into
// a short-lived signed activation token together with a 4-digit verification
// code. The code travels to the user by email while the token is returned to
// the caller, so activation requires both channels. Activation verifies the
// token, matches the code, and promotes the payload into a persisted account
// in a single transaction; unique constraints on email and phone number make
// concurrent activations lose cleanly instead of duplicating accounts.
//
// Login verifies credentials against the stored bcrypt hash and issues a
// bearer JWT. The package keeps no server-side session state: the activation
// token and the bearer credential are both self-contained.
package identity
