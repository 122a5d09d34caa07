// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package mail provides auth.Mailer implementations: SMTPMailer for real
// delivery and LogMailer for development.
package mail
