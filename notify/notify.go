// Package notify delivers account credentials to new users.
//
// Email delivery is out of scope for this service; the shipped Notifier
// writes the message to a logger so operators can hand credentials over
// during development. Production deployments plug in their own Notifier.
package notify

import (
	"context"
	"log"
)

// Credential is what a newly created user needs to sign in.
type Credential struct {
	Name     string
	Email    string
	Password string
}

// Notifier sends a credential to its owner.
type Notifier interface {
	SendCredential(ctx context.Context, c Credential) error
}

// LogNotifier writes credentials to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SendCredential(_ context.Context, c Credential) error {
	n.Logger.Printf("notify: welcome %s <%s>, your initial password is %s", c.Name, c.Email, c.Password)
	return nil
}
