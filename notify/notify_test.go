package notify_test

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/notify"
)

func TestLogNotifier_WritesCredential(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLogNotifier(log.New(&buf, "", 0))

	err := n.SendCredential(context.Background(), notify.Credential{Name: "Ana", Email: "ana@example.com", Password: "s3cret"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "ana@example.com")
	assert.Contains(t, buf.String(), "s3cret")
}
