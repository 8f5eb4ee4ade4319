package sealed

// FieldFunc runs one value through a provide/apply/cleanup cycle against
// the session of the current Store or Load call.
type FieldFunc func(src []byte) ([]byte, error)

// Override interfaces let a type bypass reflection. When a type implements
// one, the Processor calls it instead of walking encrypt tags. Each call of
// the FieldFunc counts as one field for transform caching purposes.

// Encryptable bypasses reflection on Store.
type Encryptable interface {
	// Encrypt replaces the receiver's sensitive fields with seal(field).
	// The receiver is a clone, so mutations are safe.
	Encrypt(seal FieldFunc) error
}

// Decryptable bypasses reflection on Load.
type Decryptable interface {
	// Decrypt replaces the receiver's sensitive fields with open(field).
	// Called on freshly unmarshaled data.
	Decrypt(open FieldFunc) error
}
