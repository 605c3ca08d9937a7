package binance

import (
	"errors"
	"strconv"

	"stacker/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
)

const exchangeName = "binance"

// codes in the -1000 server/network range that still mean "the request itself is wrong".
var nonRetryableServerCodes = map[int64]bool{
	-1002: true, // unauthorized
	-1013: true, // filter failure
	-1014: true, // unsupported order combination
	-1020: true, // unsupported operation
	-1022: true, // invalid signature
}

// classify maps SDK errors onto the exchange error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return &exchange.NetworkError{Exchange: exchangeName, Op: op, Err: err}
	}
	if apiErr.Code <= -1000 && apiErr.Code > -1100 && !nonRetryableServerCodes[apiErr.Code] {
		return &exchange.NetworkError{Exchange: exchangeName, Op: op, Err: apiErr}
	}
	return &exchange.RejectedError{
		Exchange: exchangeName,
		Op:       op,
		Code:     formatCode(apiErr.Code),
		Message:  apiErr.Message,
	}
}

func formatCode(code int64) string {
	if code == 0 {
		return ""
	}
	return strconv.FormatInt(code, 10)
}
