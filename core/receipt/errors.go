package receipt

import "errors"

var errNotAReceipt = errors.New("receipt: payload missing sender/executor")
