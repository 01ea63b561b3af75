package modem_test

import (
	"errors"
	"testing"

	"github.com/brocaar/lorawan"
	"i4.energy/across/loragw/modem"
)

func TestIdentityValues(t *testing.T) {
	id := modem.Identity{
		DevAddr: "26:01:1B:31",
		DevEUI:  "00-11-22-33-44-55-66-77",
		AppEUI:  "70:b3:d5:7e:d0:00:00:01",
	}

	addr, err := id.DevAddrValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != (lorawan.DevAddr{0x26, 0x01, 0x1b, 0x31}) {
		t.Errorf("unexpected DevAddr %s", addr)
	}

	devEUI, err := id.DevEUIValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devEUI != (lorawan.EUI64{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}) {
		t.Errorf("unexpected DevEUI %s", devEUI)
	}

	appEUI, err := id.AppEUIValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appEUI.String() != "70b3d57ed0000001" {
		t.Errorf("unexpected AppEUI %s", appEUI)
	}
}

func TestIdentityValuesUnset(t *testing.T) {
	var id modem.Identity

	if _, err := id.DevAddrValue(); !errors.Is(err, modem.ErrIdentityUnset) {
		t.Errorf("expected ErrIdentityUnset, got: %v", err)
	}
	if _, err := id.DevEUIValue(); !errors.Is(err, modem.ErrIdentityUnset) {
		t.Errorf("expected ErrIdentityUnset, got: %v", err)
	}
	if _, err := id.AppEUIValue(); !errors.Is(err, modem.ErrIdentityUnset) {
		t.Errorf("expected ErrIdentityUnset, got: %v", err)
	}
}

func TestIdentityValuesWrongLength(t *testing.T) {
	id := modem.Identity{DevAddr: "00:11:22:33:44:55:66:77"}
	if _, err := id.DevAddrValue(); err == nil {
		t.Error("expected error for an 8 byte DevAddr")
	}
}
