package model

// Authors with a fixed meaning in both logs
const (
	AuthorAI        = "AI"
	AuthorAnonymous = "Anonymous"
	AuthorYou       = "You"
)

// Local persistence keys
const (
	IdentityKey       = "ici-chat-user-id"
	PrivateChatPrefix = "ici-private-chat-"
	QuarantineSuffix  = ".corrupt"
)

// PrivateNamespace returns the local store key holding the private log of userID.
func PrivateNamespace(userID string) string {
	return PrivateChatPrefix + userID
}
