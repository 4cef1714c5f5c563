// Package mentor decides who may act as a mentor on an issue.
//
// Capability comes from a Provider so the registry behind it can change
// without touching the lifecycle engine.
package mentor

//go:generate mockgen -source=provider.go -destination=mentortest/mock_provider.go -package=mentortest

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Provider answers whether an actor currently holds mentor capability.
type Provider interface {
	IsMentor(ctx context.Context, actorID primitive.ObjectID) (bool, error)
}

// StaticProvider is a Provider over a fixed in-memory set.
type StaticProvider struct {
	mu      sync.RWMutex
	mentors map[primitive.ObjectID]bool
}

// NewStaticProvider returns a provider granting capability to ids.
func NewStaticProvider(ids ...primitive.ObjectID) *StaticProvider {
	p := &StaticProvider{mentors: make(map[primitive.ObjectID]bool)}
	for _, id := range ids {
		p.mentors[id] = true
	}
	return p
}

func (p *StaticProvider) IsMentor(_ context.Context, actorID primitive.ObjectID) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mentors[actorID], nil
}

// Grant gives actorID mentor capability.
func (p *StaticProvider) Grant(actorID primitive.ObjectID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mentors[actorID] = true
}

// Revoke removes mentor capability from actorID.
func (p *StaticProvider) Revoke(actorID primitive.ObjectID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mentors, actorID)
}
