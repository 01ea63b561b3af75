package modem

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/brocaar/lorawan"

	"i4.energy/across/loragw/at"
)

// Identity holds the addressing values reported by AT+ID. A field the
// modem did not report, or reported in an unexpected format, is empty.
type Identity struct {
	DevAddr string
	DevEUI  string
	AppEUI  string
}

// Complete reports whether all three identifiers were reported.
func (id Identity) Complete() bool {
	return id.DevAddr != "" && id.DevEUI != "" && id.AppEUI != ""
}

// DevAddrValue parses DevAddr into its LoRaWAN representation.
func (id Identity) DevAddrValue() (lorawan.DevAddr, error) {
	var addr lorawan.DevAddr
	b, err := decodeOctets(at.FieldDevAddr, id.DevAddr, len(addr))
	if err != nil {
		return addr, err
	}
	copy(addr[:], b)
	return addr, nil
}

// DevEUIValue parses DevEUI into its LoRaWAN representation.
func (id Identity) DevEUIValue() (lorawan.EUI64, error) {
	return parseEUI(at.FieldDevEUI, id.DevEUI)
}

// AppEUIValue parses AppEUI into its LoRaWAN representation.
func (id Identity) AppEUIValue() (lorawan.EUI64, error) {
	return parseEUI(at.FieldAppEUI, id.AppEUI)
}

func parseEUI(field at.Field, s string) (lorawan.EUI64, error) {
	var eui lorawan.EUI64
	b, err := decodeOctets(field, s, len(eui))
	if err != nil {
		return eui, err
	}
	copy(eui[:], b)
	return eui, nil
}

func decodeOctets(field at.Field, s string, n int) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: %w", field, ErrIdentityUnset)
	}
	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("%s: exactly %d bytes are expected, got %d", field, n, len(b))
	}
	return b, nil
}

// applyIdentityLines assigns the first matching pattern of every line.
// Later lines overwrite earlier ones for the same field.
func applyIdentityLines(id *Identity, lines []string) {
	for _, line := range lines {
		field, value := at.MatchID(line)
		switch field {
		case at.FieldDevAddr:
			id.DevAddr = value
		case at.FieldDevEUI:
			id.DevEUI = value
		case at.FieldAppEUI:
			id.AppEUI = value
		}
	}
}
