package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionMetadataAddIsIdempotent(t *testing.T) {
	var meta SessionMetadata

	meta.Add(ArtifactTypeProcess, "p1")
	meta.Add(ArtifactTypeProcess, "p1")
	meta.Add(ArtifactTypeProcess, "p2")

	assert.Equal(t, []string{"p1", "p2"}, meta.ProcessIDs)
}

func TestSessionMetadataAddRoutesByType(t *testing.T) {
	var meta SessionMetadata

	meta.Add(ArtifactTypeProcess, "p1")
	meta.Add(ArtifactTypeOpportunity, "o1")
	meta.Add(ArtifactTypeBlueprint, "b1")
	meta.Add(ArtifactTypeAiUseCase, "u1")
	meta.Add("unknown", "x1")

	assert.Equal(t, []string{"p1"}, meta.ProcessIDs)
	assert.Equal(t, []string{"o1"}, meta.OpportunityIDs)
	assert.Equal(t, []string{"b1"}, meta.BlueprintIDs)
	assert.Equal(t, []string{"u1"}, meta.UseCaseIDs)
}

func TestSessionMetadataFromArtifacts(t *testing.T) {
	sessionID := uuid.New()
	procID := uuid.New()
	oppID := uuid.New()

	artifacts := []SessionArtifact{
		{SessionID: sessionID, ArtifactType: ArtifactTypeProcess, ArtifactID: procID},
		{SessionID: sessionID, ArtifactType: ArtifactTypeOpportunity, ArtifactID: oppID},
		{SessionID: sessionID, ArtifactType: ArtifactTypeProcess, ArtifactID: procID},
	}

	var meta SessionMetadata
	meta.FromArtifacts(artifacts)

	assert.Equal(t, []string{procID.String()}, meta.ProcessIDs)
	assert.Equal(t, []string{oppID.String()}, meta.OpportunityIDs)
	assert.Empty(t, meta.BlueprintIDs)
}
