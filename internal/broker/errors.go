package broker

import "errors"

// ErrNoMessage is returned when a queue has no visible messages.
var ErrNoMessage = errors.New("no messages in queue")
