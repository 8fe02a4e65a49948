package gateway

import "fmt"

// Error is a uniform upstream failure: transport problems surface as plain
// wrapped errors, protocol problems as *Error with the HTTP status and,
// when the body carried one, the vendor error code.
type Error struct {
	Message    string
	HTTPStatus int
	VendorCode string
}

func (e *Error) Error() string {
	if e.VendorCode != "" {
		return fmt.Sprintf("gateway: %s (http %d, vendor %s)", e.Message, e.HTTPStatus, e.VendorCode)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("gateway: %s (http %d)", e.Message, e.HTTPStatus)
	}
	return "gateway: " + e.Message
}
