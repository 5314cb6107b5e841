package service

import (
	"context"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// Caller is a call transport the user can steer: join, leave, mute.
type Caller interface {
	domain.CallControls
	Join(ctx context.Context, callID string) error
}
