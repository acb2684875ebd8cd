package rpc

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"creditledger/native/credit"
)

// call carries one decoded JSON-RPC invocation.
type call struct {
	caller        credit.Identity
	authenticated bool
	params        []json.RawMessage
}

func (c *call) expect(min, max int) error {
	if len(c.params) < min || len(c.params) > max {
		if min == max {
			return invalidParams("expected %d params, got %d", min, len(c.params))
		}
		return invalidParams("expected %d to %d params, got %d", min, max, len(c.params))
	}
	return nil
}

func (c *call) has(i int) bool {
	if i >= len(c.params) {
		return false
	}
	trimmed := strings.TrimSpace(string(c.params[i]))
	return trimmed != "" && trimmed != "null"
}

func (c *call) str(i int) (string, error) {
	if !c.has(i) {
		return "", invalidParams("param %d required", i)
	}
	var out string
	if err := json.Unmarshal(c.params[i], &out); err != nil {
		return "", invalidParams("param %d must be a string", i)
	}
	return strings.TrimSpace(out), nil
}

func (c *call) identity(i int) (credit.Identity, error) {
	raw, err := c.str(i)
	if err != nil {
		return credit.Identity{}, err
	}
	id, err := credit.ParseIdentity(raw)
	if err != nil {
		return credit.Identity{}, invalidParams("param %d: invalid address %q", i, raw)
	}
	return id, nil
}

// subject resolves an optional address parameter, defaulting to the
// authenticated caller.
func (c *call) subject(i int) (credit.Identity, error) {
	if c.has(i) {
		return c.identity(i)
	}
	if !c.authenticated {
		return credit.Identity{}, invalidParams("param %d: address required for anonymous calls", i)
	}
	return c.caller, nil
}

func (c *call) role(i int) (credit.Role, error) {
	raw, err := c.str(i)
	if err != nil {
		return "", err
	}
	return credit.ParseRole(raw)
}

// amount accepts a decimal string, a 0x hex string or a JSON integer.
func (c *call) amount(i int) (*big.Int, error) {
	if !c.has(i) {
		return nil, invalidParams("param %d required", i)
	}
	raw := strings.TrimSpace(string(c.params[i]))
	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(c.params[i], &text); err != nil {
			return nil, invalidParams("param %d: malformed amount", i)
		}
		raw = strings.TrimSpace(text)
	}
	var (
		value *uint256.Int
		err   error
	)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		digits := strings.TrimLeft(raw[2:], "0")
		if digits == "" && len(raw) > 2 {
			digits = "0"
		}
		value, err = uint256.FromHex("0x" + digits)
	} else {
		value, err = uint256.FromDecimal(raw)
	}
	if err != nil {
		return nil, invalidParams("param %d: invalid amount %q", i, raw)
	}
	return value.ToBig(), nil
}

// uint accepts a JSON integer or its decimal or 0x string form.
func (c *call) uint(i int) (uint64, error) {
	if !c.has(i) {
		return 0, invalidParams("param %d required", i)
	}
	var number uint64
	if err := json.Unmarshal(c.params[i], &number); err == nil {
		return number, nil
	}
	text, err := c.str(i)
	if err != nil {
		return 0, invalidParams("param %d must be an unsigned integer", i)
	}
	parsed, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return 0, invalidParams("param %d: invalid integer %q", i, text)
	}
	return parsed, nil
}
