// Package workflow implements the transactional mutation engine. Every
// workflow runs as authorize, then validate, then a single store transaction
// of reads, guards in declared order, mutations and a result snapshot.
// Deferred effects (payment, events, mail) fire only after commit.
package workflow

import (
	"log"

	"warung/internal/identity"
	"warung/internal/models"
	"warung/internal/services"
	"warung/internal/store"
)

// EventPublisher publishes deferred post-commit effects. A nil publisher
// degrades to logging; publish failures are logged and never surfaced, the
// database state being authoritative.
type EventPublisher interface {
	PublishOrderCreated(event map[string]interface{}) error
	PublishMail(recipient, subject, body string) error
}

// definition is the static description of a workflow: who may run it.
// Guards and mutations live in the workflow's method, executed in the order
// written there, which is the declared error order.
type definition struct {
	roles map[models.Role]bool
}

func roles(rs ...models.Role) definition {
	d := definition{roles: make(map[models.Role]bool, len(rs))}
	for _, r := range rs {
		d.roles[r] = true
	}
	return d
}

// definitions is the authoritative workflow table.
var definitions = map[string]definition{
	"cart.add":       roles(models.RoleUser),
	"cart.view":      roles(models.RoleUser),
	"review.submit":  roles(models.RoleUser),
	"checkout.place": roles(models.RoleUser),
	"product.create": roles(models.RoleAdmin),
	"product.update": roles(models.RoleAdmin),
	"product.delete": roles(models.RoleAdmin),
}

// Engine executes workflows against the store.
type Engine struct {
	store   *store.Store
	tokens  *services.TokenService
	payment services.Payment
	events  EventPublisher
}

// New creates a workflow engine. events may be nil.
func New(s *store.Store, tokens *services.TokenService, payment services.Payment, events EventPublisher) *Engine {
	return &Engine{store: s, tokens: tokens, payment: payment, events: events}
}

// authorize asserts the resolved role is allowed to run the named workflow.
// It runs before validation, so an under-privileged caller learns nothing
// about the payload or the target resource.
func (e *Engine) authorize(name string, ident identity.Identity) *Error {
	def, ok := definitions[name]
	if !ok || !def.roles[ident.Role] {
		if !ident.Authenticated() {
			return errOf(KindUnauthenticated)
		}
		return errOf(KindForbidden)
	}
	return nil
}

// publishOrderEvent fires a post-commit order event, tolerating a missing
// or failing publisher.
func (e *Engine) publishOrderEvent(event map[string]interface{}) {
	if e.events == nil {
		log.Printf("event publisher not configured, skipping order event %v", event["order_id"])
		return
	}
	if err := e.events.PublishOrderCreated(event); err != nil {
		log.Printf("Warning: failed to publish order event: %v", err)
	}
}

// publishMail fires a post-commit mail job, tolerating a missing or failing
// publisher.
func (e *Engine) publishMail(recipient, subject, body string) {
	if e.events == nil {
		log.Printf("event publisher not configured, skipping mail to %s", recipient)
		return
	}
	if err := e.events.PublishMail(recipient, subject, body); err != nil {
		log.Printf("Warning: failed to publish mail job: %v", err)
	}
}
