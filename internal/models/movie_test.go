// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIMDbID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id    string
		valid bool
	}{
		{id: "tt1234567", valid: true},
		{id: "tt0000001", valid: true},
		{id: "tt12345678", valid: true},
		{id: "", valid: false},
		{id: "nm1234567", valid: false},
		{id: "tt", valid: false},
		{id: "tt12a4567", valid: false},
		{id: "1234567", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidIMDbID(tt.id))
		})
	}
}
