// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth implements account creation, login, token refresh, email
// verification, and password reset for Gatekeep.
//
// # Domain Types
//
// User, Session, and VerificationCode are plain records. Stores create them
// and assign identifiers; the core never builds them directly except in
// tests. Callers only ever receive PublicUser, which has no password hash.
//
// # Service
//
// Service orchestrates the injected collaborators:
//   - UserRepository, SessionRepository, CodeRepository - persistence
//   - PasswordHasher - argon2id hashing (Argon2idHasher)
//   - TokenSigner - access and refresh tokens (JWTSigner)
//   - Mailer - transactional email
//
// Every failure returned by Service is an oops error whose code maps to a
// Kind through KindOf. RequestPasswordReset is the one exception: it never
// returns an error so that callers cannot probe for accounts.
package auth
