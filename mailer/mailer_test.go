package mailer

import (
	"strings"
	"testing"
	"time"

	"clinicore/store"
)

func TestRenderDigest(t *testing.T) {
	exceptions := []*store.AppException{
		{
			ID:          1,
			Country:     "zw",
			Version:     "2.1.0",
			DeviceModel: "SM-T510",
			Message:     "null deref in screen renderer",
			CreatedAt:   time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:      2,
			Country: "mw",
			Message: "<script>alert(1)</script>",
		},
	}

	body, err := renderDigest(exceptions)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "2 new exception(s)") {
		t.Error("missing count line")
	}
	if !strings.Contains(body, "null deref in screen renderer") {
		t.Error("missing exception message")
	}
	if strings.Contains(body, "<script>") {
		t.Error("message content must be escaped")
	}
}
