package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_FaultSides(t *testing.T) {
	clientErr := Classify("tts", http.StatusUnprocessableEntity, fmt.Errorf("bad request"))
	assert.Equal(t, KindPermanentClient, clientErr.Kind)
	assert.False(t, IsTransient(clientErr))

	serverErr := Classify("tts", http.StatusBadGateway, fmt.Errorf("upstream down"))
	assert.Equal(t, KindTransient, serverErr.Kind)
	assert.True(t, IsTransient(serverErr))
}

func TestPermanentServer_NotRetried(t *testing.T) {
	err := PermanentServer("image", fmt.Errorf("malformed response"))
	assert.Equal(t, KindPermanentServer, err.Kind)
	assert.False(t, IsTransient(err))
}

func TestIsTransient_Defaults(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("unclassified")))
	assert.False(t, IsTransient(Permanent("llm", fmt.Errorf("prompt is required"))))
}
