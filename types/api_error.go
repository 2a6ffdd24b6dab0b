package types

import "fmt"

// userErrorOffset is added to user error codes on the wire
const userErrorOffset = 1 << 16

// ApiError is the status a contract reverts with
type ApiError struct {
	Code uint32
}

var (
	ApiErrorNone                     = ApiError{Code: 1}
	ApiErrorMissingArgument          = ApiError{Code: 2}
	ApiErrorInvalidArgument          = ApiError{Code: 3}
	ApiErrorDeserialize              = ApiError{Code: 4}
	ApiErrorRead                     = ApiError{Code: 5}
	ApiErrorValueNotFound            = ApiError{Code: 6}
	ApiErrorContractNotFound         = ApiError{Code: 7}
	ApiErrorGetKey                   = ApiError{Code: 8}
	ApiErrorUnexpectedKeyVariant     = ApiError{Code: 9}
	ApiErrorInvalidDictionaryItemKey = ApiError{Code: 10}
)

var apiErrorNames = map[uint32]string{
	1:  "None",
	2:  "MissingArgument",
	3:  "InvalidArgument",
	4:  "Deserialize",
	5:  "Read",
	6:  "ValueNotFound",
	7:  "ContractNotFound",
	8:  "GetKey",
	9:  "UnexpectedKeyVariant",
	10: "InvalidDictionaryItemKey",
}

// UserError builds the ApiError for a contract-defined error code
func UserError(code uint16) ApiError {
	return ApiError{Code: userErrorOffset + uint32(code)}
}

// ApiErrorFromCode maps a raw status back to an ApiError
func ApiErrorFromCode(code uint32) ApiError {
	return ApiError{Code: code}
}

// User returns the contract-defined code if e is a user error
func (e ApiError) User() (uint16, bool) {
	if e.Code < userErrorOffset || e.Code > userErrorOffset+0xffff {
		return 0, false
	}
	return uint16(e.Code - userErrorOffset), true
}

func (e ApiError) GoString() string {
	if code, ok := e.User(); ok {
		return fmt.Sprintf("User(%d)", code)
	}
	if name, ok := apiErrorNames[e.Code]; ok {
		return name
	}
	return fmt.Sprintf("Unhandled(%d)", e.Code)
}

func (e ApiError) Error() string {
	return fmt.Sprintf("ApiError::%s [%d]", e.GoString(), e.Code)
}
