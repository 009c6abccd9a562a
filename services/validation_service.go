package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/internal/telemetry"
)

const (
	maxRealisticScore          = 100000
	minScoreSubmissionInterval = 10 * time.Second
)

// RejectionError is a client-caused validation failure. Suspicious marks the
// anti-cheat subset (negative or implausible scores, rate violations); they
// get the same HTTP treatment but are distinguished in telemetry.
type RejectionError struct {
	Reason     string
	ErrorType  string
	Suspicious bool
}

func (e *RejectionError) Error() string {
	return e.Reason
}

type rateStore interface {
	LatestSubmissionTime(ctx context.Context, sessionID string) (time.Time, bool, error)
}

// ValidationService enforces submission plausibility rules. It is stateless:
// its only read is the rate-limit lookup against the store.
type ValidationService struct {
	store       rateStore
	maxScore    int
	minInterval time.Duration
	now         func() time.Time
}

func NewValidationService(store rateStore) *ValidationService {
	return &ValidationService{
		store:       store,
		maxScore:    maxRealisticScore,
		minInterval: minScoreSubmissionInterval,
		now:         time.Now,
	}
}

// Validate applies the rules in order and stops at the first violation.
// It mutates the submission: an empty player name becomes "Anonymous".
// The returned error is always a *RejectionError or nil.
func (v *ValidationService) Validate(ctx context.Context, sub *score.Submission) error {
	ctx, span := telemetry.Tracer.Start(ctx, "validateScore")
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.ScoreValidationDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if sub.PlayerName == "" {
		sub.PlayerName = "Anonymous"
	}
	if len(sub.PlayerName) > 100 {
		return &RejectionError{
			Reason:    "player name too long (max 100 characters)",
			ErrorType: "name_too_long",
		}
	}
	if sub.Score < 0 {
		span.SetAttributes(attribute.Bool("validation.suspicious", true))
		return &RejectionError{
			Reason:     "invalid score: negative value",
			ErrorType:  "negative_score",
			Suspicious: true,
		}
	}
	if sub.SessionID == "" {
		return &RejectionError{
			Reason:    "session ID required",
			ErrorType: "session_required",
		}
	}
	if sub.Score > v.maxScore {
		span.SetAttributes(attribute.Bool("validation.suspicious", true))
		return &RejectionError{
			Reason:     fmt.Sprintf("score too high (max %d)", v.maxScore),
			ErrorType:  "score_too_high",
			Suspicious: true,
		}
	}

	if err := v.checkSubmissionRate(ctx, sub.SessionID); err != nil {
		span.SetAttributes(attribute.Bool("validation.suspicious", true))
		return err
	}

	return nil
}

// checkSubmissionRate rejects a second submission for the same session
// inside the minimum interval. The check is not atomic with the insert, so
// two concurrent submissions for one session can both pass; that race is
// accepted for a game leaderboard.
func (v *ValidationService) checkSubmissionRate(ctx context.Context, sessionID string) error {
	ctx, span := telemetry.Tracer.Start(ctx, "checkSubmissionRate")
	defer span.End()

	last, found, err := v.store.LatestSubmissionTime(ctx, sessionID)
	if err != nil {
		// The rate check is advisory; a failed lookup must not block the write.
		log.Printf("Rate check failed for session %s: %v", sessionID, err)
		span.RecordError(err)
		return nil
	}
	if !found {
		return nil
	}

	elapsed := v.now().Sub(last)
	if elapsed < v.minInterval {
		span.SetAttributes(
			attribute.String("anti_cheat.reason", "submission_rate_exceeded"),
			attribute.Float64("time_since_last_submission_seconds", elapsed.Seconds()),
		)
		wait := (v.minInterval - elapsed).Round(time.Second)
		return &RejectionError{
			Reason:     fmt.Sprintf("please wait %v between submissions", wait),
			ErrorType:  "rate_limited",
			Suspicious: true,
		}
	}

	return nil
}
