package domain

import (
	"context"
	"strings"
)

// RecentActivities returns the community feed, newest first across all owners.
func (s *Service) RecentActivities(ctx context.Context, limit int) ([]Activity, error) {
	return s.repo.ListRecent(ctx, clampLimit(limit, 10, 50))
}

// Leaderboard returns the highest scores first.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return s.community.TopScores(ctx, clampLimit(limit, 10, 50))
}

// CurrentChallenge returns the challenge with the latest start date.
func (s *Service) CurrentChallenge(ctx context.Context) (*Challenge, error) {
	challenge, err := s.community.LatestChallenge(ctx)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

// JoinChallenge adds the owner to a challenge. Joining twice is harmless.
func (s *Service) JoinChallenge(ctx context.Context, ownerID, challengeID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(challengeID) == "" {
		return ErrChallengeNotFound
	}
	if err := s.community.JoinChallenge(ctx, challengeID, ownerID); err != nil {
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("challenge_id", challengeID).Msg("challenge joined")
	return nil
}
