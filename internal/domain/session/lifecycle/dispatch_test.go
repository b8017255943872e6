// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/genplay/internal/domain/session/model"
)

func TestDispatch_HappyPath(t *testing.T) {
	now := time.Unix(100, 0)
	sess := model.NewGenerationSession("", now)

	tr, err := Dispatch(sess, Event{Kind: EvAccepted}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingArtifact, tr.To)

	_, err = Dispatch(sess, Event{Kind: EvArtifactReady}, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, sess.Status)
	require.NotNil(t, sess.FinishedAt)
	assert.Nil(t, sess.Failure)
}

func TestDispatch_FailureCarriesKindAndMessage(t *testing.T) {
	sess := model.NewGenerationSession("abc", time.Now())
	_, err := Dispatch(sess, Event{Kind: EvFailed, FailureKind: model.FailureQuota, Message: "out of credits"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, &model.Failure{Kind: model.FailureQuota, Message: "out of credits"}, sess.Failure)
}

func TestDispatch_FailureDefaultsToGeneric(t *testing.T) {
	sess := model.NewGenerationSession("", time.Now())
	_, err := Dispatch(sess, Event{Kind: EvFailed, Message: "LLM failure"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.FailureGeneric, sess.Failure.Kind)
}

func TestDispatch_TimedOut(t *testing.T) {
	sess := model.NewGenerationSession("", time.Now())
	_, err := Dispatch(sess, Event{Kind: EvTimedOut, Message: "contact support"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.StatusTimedOut, sess.Status)
	assert.Equal(t, model.FailureTimeout, sess.Failure.Kind)
}

func TestDispatch_TerminalIsAbsorbing(t *testing.T) {
	for _, terminal := range []model.Status{model.StatusReady, model.StatusFailed, model.StatusTimedOut} {
		for _, ev := range allEvents {
			sess := model.NewGenerationSession("abc", time.Now())
			sess.Status = terminal
			before := sess.Clone()

			_, err := Dispatch(sess, Event{Kind: ev, Message: "late"}, time.Now())
			assert.ErrorIs(t, err, ErrTerminal)
			assert.Equal(t, before, sess.Clone())
		}
	}
}

func TestDispatch_OutOfOrderRejected(t *testing.T) {
	sess := model.NewGenerationSession("", time.Now())
	_, err := Dispatch(sess, Event{Kind: EvArtifactReady}, time.Now())
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, model.StatusAwaitingID, sess.Status)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ForbiddenOutOfOrder, te.Reason)
}
