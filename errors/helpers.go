package errors

// WrapOpComponent provides a convenience helper to wrap errors with consistent
// Op and Component propagation. If err is nil, returns nil.
func WrapOpComponent(err error, op Operation, component string) error {
	if err == nil {
		return nil
	}
	return &VaultError{Op: op, Component: component, Err: err}
}

// WrapOpComponentKind provides a convenience helper to wrap errors with Op,
// Component, and Kind. If err is nil, returns nil.
func WrapOpComponentKind(err error, op Operation, component string, kind Kind) error {
	if err == nil {
		return nil
	}
	retryable := kind == KindTransient
	return &VaultError{Op: op, Component: component, Kind: kind, Err: err, Retryable: retryable}
}

// WithMetadata attaches a metadata entry to a VaultError, creating the map
// lazily. It is a no-op for non-VaultError values.
func WithMetadata(err error, key string, value interface{}) error {
	ve, ok := err.(*VaultError)
	if !ok {
		return err
	}
	if ve.Metadata == nil {
		ve.Metadata = make(map[string]interface{})
	}
	ve.Metadata[key] = value
	return ve
}
