package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fieme-one/Teleserver/internal/telegram"
	"github.com/spf13/viper"
)

const signTestBotToken = "123456:TEST-bot-token"

func runSign(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Set("telegram.bot_token", signTestBotToken)
	t.Cleanup(func() { viper.Set("telegram.bot_token", "") })

	cmd := newSignCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func TestSignCommandProducesVerifiablePayload(t *testing.T) {
	output, err := runSign(t, "--id", "42", "--first-name", "Grace", "--auth-date", "1700000000", "--field", "nonce=abc")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	var claims telegram.ClaimSet
	if err := json.Unmarshal([]byte(output), &claims); err != nil {
		t.Fatalf("failed to decode output %q: %v", output, err)
	}

	verifier, err := telegram.NewVerifier(signTestBotToken)
	if err != nil {
		t.Fatalf("unexpected verifier error: %v", err)
	}
	if !verifier.Verify(&claims) {
		t.Fatalf("expected signed payload to verify: %s", output)
	}
	if claims.ID.Value != "42" || claims.AuthDate.Value != "1700000000" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Extra["nonce"] != "abc" {
		t.Fatalf("expected extra field to be signed, got %v", claims.Extra)
	}
	if claims.LastName.Present {
		t.Fatalf("expected unset last name to stay absent")
	}
}

func TestSignCommandRequiresID(t *testing.T) {
	if _, err := runSign(t, "--first-name", "Grace"); err == nil {
		t.Fatalf("expected missing id to be rejected")
	}
}
