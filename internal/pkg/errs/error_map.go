/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidIdentifier:    {Code: ErrInvalidIdentifier, Message: "Invalid identifier.", Status: http.StatusBadRequest},

	// 2xxx: User, Conversation, and Message Business Logic Errors
	ErrUserNotFound:         {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrUsernameRequired:     {Code: ErrUsernameRequired, Message: "Username is required.", Status: http.StatusBadRequest},
	ErrConversationNotFound: {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrSelfConversation:     {Code: ErrSelfConversation, Message: "Cannot open a direct conversation with yourself.", Status: http.StatusBadRequest},
	ErrGroupMembersRequired: {Code: ErrGroupMembersRequired, Message: "A group needs at least %d distinct members.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "Storage operation failed. Please try again.", Status: http.StatusInternalServerError},
}
