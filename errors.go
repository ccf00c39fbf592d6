package spoofbot

import "errors"

// ErrNetworkDisabled is returned when offline mode blocks an outbound call.
// The transport never silently reaches the network while offline.
var ErrNetworkDisabled = errors.New("network disabled by offline mode")
