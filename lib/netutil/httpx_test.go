// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	body := strings.NewReader(`{"capabilities":["sogs","blind"]}`)
	data, err := ReadResponse(body)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(data) != `{"capabilities":["sogs","blind"]}` {
		t.Errorf("ReadResponse = %q", data)
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("room not found")); got != "room not found" {
		t.Errorf("ErrorBody = %q", got)
	}
}
