// Copyright 2025 Graniteworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Failure taxonomy. Every error crossing a component boundary wraps exactly
// one of these sentinels so that callers can decide between retry, reject,
// and abort without string matching.
var (
	// ErrValidation indicates empty or invalid input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrTransient indicates a timeout or transport failure. Eligible for
	// retry where a retry policy is defined.
	ErrTransient = errors.New("transient failure")

	// ErrPermanent indicates the provider rejected the input. Never retried.
	ErrPermanent = errors.New("permanent failure")

	// ErrRetrieval indicates a fusion or storage failure during search.
	// The query pipeline aborts; no partial results are returned.
	ErrRetrieval = errors.New("retrieval failed")
)

// Domain validation errors.
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrEmptyContent indicates the Contents field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptySessionId indicates the session identifier is empty.
	ErrEmptySessionId = errors.New("session id cannot be empty")
)

// IsTransient reports whether err is retryable under the retry policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err must never be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation)
}
