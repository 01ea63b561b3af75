package modem

import (
	"context"
	"fmt"
	"strings"

	"github.com/brocaar/lorawan"

	"i4.energy/across/loragw/at"
)

// KeyType names a LoRaWAN key slot as understood by AT+KEY.
type KeyType string

const (
	KeyNwkSKey KeyType = at.KeyNwkSKey
	KeyAppSKey KeyType = at.KeyAppSKey
	KeyAppKey  KeyType = at.KeyAppKey
)

// ParseKeyType accepts the AT+KEY slot names in any letter case.
func ParseKeyType(s string) (KeyType, error) {
	switch k := KeyType(strings.ToUpper(s)); k {
	case KeyNwkSKey, KeyAppSKey, KeyAppKey:
		return k, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKeyType)
}

// KeyResult reports the outcome of a key provisioning exchange.
type KeyResult struct {
	Key      KeyType
	Accepted bool
	// Reason is the text inside "+KEY: ERROR(...)" when the modem refused
	// the key.
	Reason string
}

// ProvisionKey writes AT+KEY=<keyType>,"<value>" and reads one response line.
//
// An empty value fails with ErrEmptyKey without touching the transport.
// When the modem answers "+KEY: ERROR(<reason>)" the rejection is logged
// and reported through KeyResult; the stored key keeps its previous value.
// The error return stays nil for a rejection unless
// Config.PropagateKeyRejection is set, in which case it is a
// *KeyRejectedError.
func (m *Modem) ProvisionKey(ctx context.Context, keyType KeyType, value string) (KeyResult, error) {
	keyType, err := ParseKeyType(string(keyType))
	if err != nil {
		return KeyResult{}, err
	}
	result := KeyResult{Key: keyType}

	if value == "" {
		m.logger.Error("Key provisioning failed", "key", keyType, "error", ErrEmptyKey)
		return result, fmt.Errorf("%s: %w", keyType, ErrEmptyKey)
	}

	ctx, cancel := m.commandContext(ctx)
	defer cancel()

	release, err := m.begin(ctx)
	if err != nil {
		return result, err
	}
	defer release()

	if err := m.send(at.KeyCommand(string(keyType), value)); err != nil {
		return result, err
	}
	line, err := m.recv(ctx)
	if err != nil {
		return result, err
	}

	if reason, rejected := at.MatchKeyError(line); rejected {
		result.Reason = reason
		rejectErr := &KeyRejectedError{Key: keyType, Reason: reason}
		m.logger.Error("Key provisioning failed", "key", keyType, "error", rejectErr)
		if m.config.PropagateKeyRejection {
			return result, rejectErr
		}
		return result, nil
	}

	m.state.Lock()
	switch keyType {
	case KeyNwkSKey:
		m.nwkSKey = value
	case KeyAppSKey:
		m.appSKey = value
	case KeyAppKey:
		m.appKey = value
	}
	m.state.Unlock()

	result.Accepted = true
	return result, nil
}

// ProvisionAES128Key provisions a key given in its binary form. The value is
// sent as upper case hex.
func (m *Modem) ProvisionAES128Key(ctx context.Context, keyType KeyType, key lorawan.AES128Key) (KeyResult, error) {
	return m.ProvisionKey(ctx, keyType, strings.ToUpper(key.String()))
}

func (m *Modem) SetNwkSKey(ctx context.Context, value string) (KeyResult, error) {
	return m.ProvisionKey(ctx, KeyNwkSKey, value)
}

func (m *Modem) SetAppSKey(ctx context.Context, value string) (KeyResult, error) {
	return m.ProvisionKey(ctx, KeyAppSKey, value)
}

func (m *Modem) SetAppKey(ctx context.Context, value string) (KeyResult, error) {
	return m.ProvisionKey(ctx, KeyAppKey, value)
}

// NwkSKey returns the last network session key the modem accepted.
func (m *Modem) NwkSKey() string {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.nwkSKey
}

// AppSKey returns the last application session key the modem accepted.
func (m *Modem) AppSKey() string {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.appSKey
}

// AppKey returns the last application root key the modem accepted.
func (m *Modem) AppKey() string {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.appKey
}
