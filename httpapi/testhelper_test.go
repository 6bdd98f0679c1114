package httpapi

import "github.com/weavehub/weave/auth"

func actorFixture() auth.Actor {
	return auth.Actor{Type: auth.ActorUser, Identity: "user-1", Role: auth.RoleUser}
}
