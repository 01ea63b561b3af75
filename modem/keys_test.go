package modem_test

import (
	"errors"
	"testing"

	"github.com/brocaar/lorawan"
	"i4.energy/across/loragw/modem"
)

const testKey = "2B7E151628AED2A6ABF7158809CF4F3C"

func TestProvisionKey(t *testing.T) {
	t.Run("Empty value is rejected before the wire", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).Identity()
		m := newTestModem(t, transport)

		result, err := m.SetNwkSKey(testContext(t), "")
		if !errors.Is(err, modem.ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got: %v", err)
		}
		if result.Accepted {
			t.Error("empty key must not be accepted")
		}
		if len(transport.Writes()) != 1 {
			t.Errorf("nothing should be written for an empty key, got %q", transport.Writes())
		}
	})

	t.Run("Unknown key type", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).Identity()
		m := newTestModem(t, transport)

		_, err := m.ProvisionKey(testContext(t), modem.KeyType("DEVKEY"), testKey)
		if !errors.Is(err, modem.ErrUnknownKeyType) {
			t.Errorf("expected ErrUnknownKeyType, got: %v", err)
		}
	})

	t.Run("Accepted keys are stored", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).
			Identity().
			KeyAccepted(modem.KeyNwkSKey, testKey).
			KeyAccepted(modem.KeyAppSKey, testKey).
			KeyAccepted(modem.KeyAppKey, testKey)
		m := newTestModem(t, transport)

		ctx := testContext(t)
		for _, provision := range []func() (modem.KeyResult, error){
			func() (modem.KeyResult, error) { return m.SetNwkSKey(ctx, testKey) },
			func() (modem.KeyResult, error) { return m.SetAppSKey(ctx, testKey) },
			func() (modem.KeyResult, error) { return m.SetAppKey(ctx, testKey) },
		} {
			result, err := provision()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Accepted {
				t.Errorf("expected %s to be accepted", result.Key)
			}
		}

		if m.NwkSKey() != testKey || m.AppSKey() != testKey || m.AppKey() != testKey {
			t.Errorf("keys not stored: nwks=%q apps=%q app=%q", m.NwkSKey(), m.AppSKey(), m.AppKey())
		}

		writes := transport.Writes()
		if want := `AT+KEY=APPKEY,"` + testKey + "\"\r\n"; writes[len(writes)-1] != want {
			t.Errorf("expected %q on the wire, got %q", want, writes[len(writes)-1])
		}
	})

	t.Run("Rejection is logged and reported, not returned", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).
			Identity().
			KeyAccepted(modem.KeyAppKey, testKey).
			KeyRejected(modem.KeyAppKey, "bogus", "bad format")
		m := newTestModem(t, transport)

		ctx := testContext(t)
		if _, err := m.SetAppKey(ctx, testKey); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := m.SetAppKey(ctx, "bogus")
		if err != nil {
			t.Errorf("rejection should not be returned by default, got: %v", err)
		}
		if result.Accepted {
			t.Error("expected key to be rejected")
		}
		if result.Reason != "bad format" {
			t.Errorf("expected reason %q, got %q", "bad format", result.Reason)
		}
		if m.AppKey() != testKey {
			t.Errorf("rejected key must not replace the stored one, got %q", m.AppKey())
		}
	})

	t.Run("Rejection is returned when configured", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).Identity().KeyRejected(modem.KeyNwkSKey, "bogus", "bad format")
		m := newTestModem(t, transport, func(b *modem.ConfigBuilder) {
			b.WithPropagateKeyRejection(true)
		})

		result, err := m.SetNwkSKey(testContext(t), "bogus")

		var rejected *modem.KeyRejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("expected KeyRejectedError, got: %v", err)
		}
		if rejected.Key != modem.KeyNwkSKey || rejected.Reason != "bad format" {
			t.Errorf("unexpected rejection: %+v", rejected)
		}
		if result.Reason != "bad format" {
			t.Errorf("expected reason in result, got %q", result.Reason)
		}
		if m.NwkSKey() != "" {
			t.Errorf("rejected key must not be stored, got %q", m.NwkSKey())
		}
	})

	t.Run("Key type is case insensitive", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).Identity().KeyAccepted(modem.KeyAppSKey, testKey)
		m := newTestModem(t, transport)

		result, err := m.ProvisionKey(testContext(t), modem.KeyType("appskey"), testKey)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Key != modem.KeyAppSKey || m.AppSKey() != testKey {
			t.Errorf("expected APPSKEY to be stored, got result %+v", result)
		}
	})

	t.Run("AES128 key is sent as upper case hex", func(t *testing.T) {
		transport := modem.NewTestTransport()
		NewReplySequence(transport).Identity().KeyAccepted(modem.KeyAppKey, testKey)
		m := newTestModem(t, transport)

		var key lorawan.AES128Key
		if err := key.UnmarshalText([]byte("2b7e151628aed2a6abf7158809cf4f3c")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := m.ProvisionAES128Key(testContext(t), modem.KeyAppKey, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Accepted || m.AppKey() != testKey {
			t.Errorf("expected %q to be stored, got %q", testKey, m.AppKey())
		}
	})
}

func TestParseKeyType(t *testing.T) {
	tests := []struct {
		input    string
		expected modem.KeyType
		err      error
	}{
		{input: "NWKSKEY", expected: modem.KeyNwkSKey},
		{input: "appskey", expected: modem.KeyAppSKey},
		{input: "AppKey", expected: modem.KeyAppKey},
		{input: "devkey", err: modem.ErrUnknownKeyType},
		{input: "", err: modem.ErrUnknownKeyType},
	}

	for _, tt := range tests {
		got, err := modem.ParseKeyType(tt.input)
		if !errors.Is(err, tt.err) {
			t.Errorf("%q: expected error %v, got %v", tt.input, tt.err, err)
		}
		if got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}
