package nameservice

import "fmt"

// HandshakeError reports why a DATANODE_HANDSHAKE was rejected:
// software version mismatch or a namespace id that does not match the
// cluster's.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string { return fmt.Sprintf("handshake rejected: %s", e.Reason) }
