package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseAddressAcceptsHexAndBech32(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, AddressLength)
	addr := NewAddress(CreditPrefix, raw)

	fromBech32, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	fromHex, err := ParseAddress(strings.ToLower(addr.Hex()))
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromBech32 != fromHex {
		t.Fatalf("hex and bech32 forms decoded differently")
	}
	if !bytes.Equal(fromHex[:], raw) {
		t.Fatalf("unexpected bytes %x", fromHex)
	}
}

func TestParseAddressRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "0x1234", "0xzz", "cred1notvalid"}
	for _, input := range cases {
		if _, err := ParseAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestGeneratedKeyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if key.PubKey().Address().String() != restored.PubKey().Address().String() {
		t.Fatalf("restored key derived a different address")
	}
	if key.PubKey().Address().Prefix() != CreditPrefix {
		t.Fatalf("unexpected prefix %q", key.PubKey().Address().Prefix())
	}
}
