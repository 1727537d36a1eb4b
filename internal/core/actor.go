package core

// ActorContext identifies the authenticated caller on whose behalf an engine
// operation runs. It is threaded explicitly through every call — there is no
// ambient current-user state anywhere in this package.
type ActorContext struct {
	UserID   int
	Username string
	Role     string
}

// Authenticated reports whether the actor carries a real user identity.
func (a ActorContext) Authenticated() bool {
	return a.UserID > 0
}
