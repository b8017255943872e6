// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "github.com/google/uuid"

// NewLocalID returns the client-side correlation handle for a session.
func NewLocalID() string {
	return uuid.NewString()
}
