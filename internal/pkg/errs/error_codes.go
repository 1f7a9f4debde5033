/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrInvalidIdentifier indicates that a supplied identity reference is not well-formed.
	ErrInvalidIdentifier = 1006
)

// 2xxx: User, Conversation, and Message Business Logic Errors
const (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = 2101

	// ErrUsernameRequired indicates that a username was missing from the request.
	ErrUsernameRequired = 2102

	// ErrConversationNotFound indicates that the referenced conversation does not exist.
	ErrConversationNotFound = 2201

	// ErrSelfConversation indicates an attempt to open a direct conversation with oneself.
	ErrSelfConversation = 2202

	// ErrGroupMembersRequired indicates that a group was created with fewer than two distinct members.
	ErrGroupMembersRequired = 2203
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates that a persistence operation failed.
	ErrStorageFailed = 5001
)
