package storage

import (
	"context"
	"fmt"

	"clipstream/internal/apperr"
	"clipstream/internal/models"
)

// ToggleState reports which way a toggle resolved.
type ToggleState string

const (
	ToggleCreated ToggleState = "created"
	ToggleRemoved ToggleState = "removed"
)

// relationKey identifies the unique relation record for (kind, actor, target).
// Every lookup and the toggle itself go through this key, so the same actor
// liking two different targets never collides.
func relationKey(kind models.RelationKind, actorID, targetID string) string {
	return fmt.Sprintf("%s/%s/%s", kind, actorID, targetID)
}

// ToggleRelation flips the presence of the (kind, actor, target) relation and
// reports the resulting state. The check and the write run inside one dataset
// mutation, so concurrent toggles of the same relation serialize into strict
// created/removed alternation.
func (s *Storage) ToggleRelation(ctx context.Context, kind models.RelationKind, actorID, targetID string) (ToggleState, error) {
	const op = "storage.ToggleRelation"
	if err := checkContext(ctx, op); err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", apperr.Validation(op, fmt.Sprintf("unknown relation kind %q", kind))
	}
	if actorID == "" || targetID == "" {
		return "", apperr.Validation(op, "actor and target are required")
	}
	var state ToggleState
	err := s.mutate(op, func(data *dataset) error {
		if err := s.checkRelationTarget(data, op, kind, targetID); err != nil {
			return err
		}
		key := relationKey(kind, actorID, targetID)
		if _, ok := data.Relations[key]; ok {
			delete(data.Relations, key)
			state = ToggleRemoved
			return nil
		}
		data.Relations[key] = models.Relation{
			ID:        s.newID(),
			ActorID:   actorID,
			TargetID:  targetID,
			Kind:      kind,
			CreatedAt: s.now().UTC(),
		}
		state = ToggleCreated
		return nil
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

func (s *Storage) checkRelationTarget(data *dataset, op string, kind models.RelationKind, targetID string) error {
	switch kind {
	case models.RelationLikeVideo:
		if _, ok := data.Videos[targetID]; !ok {
			return apperr.NotFound(op, "video not found")
		}
	case models.RelationLikeComment:
		if _, ok := data.Comments[targetID]; !ok {
			return apperr.NotFound(op, "comment not found")
		}
	case models.RelationLikeTweet:
		if _, ok := data.Tweets[targetID]; !ok {
			return apperr.NotFound(op, "tweet not found")
		}
	case models.RelationSubscription:
		if _, ok := data.Accounts[targetID]; !ok {
			return apperr.NotFound(op, "channel not found")
		}
	}
	return nil
}

// RelationExists reports whether the exact (kind, actor, target) record is
// present.
func (s *Storage) RelationExists(ctx context.Context, kind models.RelationKind, actorID, targetID string) (bool, error) {
	if err := checkContext(ctx, "storage.RelationExists"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Relations[relationKey(kind, actorID, targetID)]
	return ok, nil
}

// CountRelations counts records of the kind pointing at the target.
func (s *Storage) CountRelations(ctx context.Context, kind models.RelationKind, targetID string) (int, error) {
	if err := checkContext(ctx, "storage.CountRelations"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, relation := range s.data.Relations {
		if relation.Kind == kind && relation.TargetID == targetID {
			count++
		}
	}
	return count, nil
}

// CountRelationsByActor counts records of the kind originating from the actor.
func (s *Storage) CountRelationsByActor(ctx context.Context, kind models.RelationKind, actorID string) (int, error) {
	if err := checkContext(ctx, "storage.CountRelationsByActor"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, relation := range s.data.Relations {
		if relation.Kind == kind && relation.ActorID == actorID {
			count++
		}
	}
	return count, nil
}
