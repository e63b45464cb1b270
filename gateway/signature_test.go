package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignKnownVector(t *testing.T) {
	fields := map[string]any{
		"TerminalKey": "term-1",
		"Amount":      100000,
		"OrderId":     "order-42",
	}

	// Sorted keys: Amount, OrderId, Password, TerminalKey.
	sum := sha256.Sum256([]byte("100000" + "order-42" + "secret" + "term-1"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, Sign(fields, "secret"))
}

func TestSignExcludesNonScalars(t *testing.T) {
	base := map[string]any{
		"TerminalKey": "term-1",
		"OrderId":     "order-42",
	}
	withNested := map[string]any{
		"TerminalKey": "term-1",
		"OrderId":     "order-42",
		"DATA":        map[string]any{"Email": "a@b.c"},
		"Items":       []any{map[string]any{"Name": "x"}},
		"Nothing":     nil,
	}

	assert.Equal(t, Sign(base, "secret"), Sign(withNested, "secret"))
}

func TestSignScalarRendering(t *testing.T) {
	a := Sign(map[string]any{"FinalPayout": true, "Amount": float64(70000)}, "pw")
	b := Sign(map[string]any{"FinalPayout": "true", "Amount": "70000"}, "pw")
	assert.Equal(t, a, b, "booleans and whole floats must render the way the processor renders them")
}

func TestSignPasswordChangesDigest(t *testing.T) {
	fields := map[string]any{"OrderId": "order-42"}
	assert.NotEqual(t, Sign(fields, "one"), Sign(fields, "two"))
}

func TestVerify(t *testing.T) {
	fields := map[string]any{
		"TerminalKey": "term-1",
		"Status":      "CONFIRMED",
		"PaymentId":   float64(123456),
		"Success":     true,
	}
	token := Sign(fields, "secret")

	assert.True(t, Verify(fields, token, "secret"))
	assert.False(t, Verify(fields, token, "wrong-password"))

	fields["Status"] = "REJECTED"
	assert.False(t, Verify(fields, token, "secret"), "tampered payload must not verify")
}
