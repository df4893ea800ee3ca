package orchestrator

import "github.com/google/uuid"

func randomRequestID() string {
	return uuid.NewString()
}
