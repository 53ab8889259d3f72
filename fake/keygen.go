package fake

// KeyGenerator returns fixed, predictable values, for tests that need to
// assert on the exact bytes a handshake or frame produces.
type KeyGenerator struct {
	Key  string
	Mask [4]byte
}

// NewKeyGenerator returns a KeyGenerator with a conformant-looking
// default key and a non-zero default mask.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		Key:  "dGhlIHNhbXBsZSBub25jZQ==",
		Mask: [4]byte{0x01, 0x02, 0x03, 0x04},
	}
}

func (k *KeyGenerator) SecWebSocketKey() string { return k.Key }
func (k *KeyGenerator) FrameMask() [4]byte      { return k.Mask }

// UTF8Validator accepts every payload unless configured otherwise.
type UTF8Validator struct {
	Reject bool
}

func (v *UTF8Validator) Valid(b []byte) bool { return !v.Reject }
