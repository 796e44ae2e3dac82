package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown; in-flight uploads past this are
// dropped.
var ShutdownTimeout = 10 * time.Second
