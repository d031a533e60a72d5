package workflow

import (
	"context"
	"time"

	"warung/internal/store"
	"warung/internal/validation"
)

// NewsletterInput is the validated payload of newsletter.unsubscribe.
type NewsletterInput struct {
	Reason string `json:"reason" validate:"max=1024"`
}

func decodeNewsletter(body []byte) (NewsletterInput, *validation.Failure) {
	var in NewsletterInput
	d := validation.NewDecoder(body)
	d.String("reason", false, &in.Reason)
	return in, d.Finish(&in)
}

// NewsletterResult is the empty Ok payload of newsletter.unsubscribe.
type NewsletterResult struct{}

// NewsletterUnsubscribe clears a user's subscription flag. The signed bearer
// token proves subject identity; the session role is not consulted. Each
// token admits exactly one run: its jti is recorded in the same transaction
// as the flag update, so a replay fails as unauthenticated.
func (e *Engine) NewsletterUnsubscribe(ctx context.Context, token string, body []byte) (NewsletterResult, error) {
	var out NewsletterResult
	userID, jti, err := e.tokens.VerifyUnsubscribe(token)
	if err != nil {
		return out, errOf(KindUnauthenticated)
	}
	in, failure := decodeNewsletter(body)
	if failure != nil {
		return out, validationError(failure.Fields)
	}

	err = e.store.Transaction(ctx, func(tx *store.Tx) error {
		var seen string
		consumed, err := tx.QueryOne(ctx, &seen,
			"SELECT jti FROM consumed_tokens WHERE jti = ?", jti)
		if err != nil {
			return err
		}
		if consumed {
			return errOf(KindUnauthenticated)
		}
		_, err = tx.Execute(ctx,
			"INSERT INTO consumed_tokens (jti, consumed_at) VALUES (?, ?)",
			jti, time.Now().UTC())
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx,
			"UPDATE users SET subscribed = 0, unsubscribe_reason = ? WHERE id = ?",
			in.Reason, userID)
		return err
	})
	if err != nil {
		return NewsletterResult{}, normalize(err)
	}
	return out, nil
}
