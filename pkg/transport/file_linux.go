package transport

import "golang.org/x/sys/unix"

// ioctlInputQueue returns the number of bytes waiting to be read.
const ioctlInputQueue = unix.TIOCINQ
