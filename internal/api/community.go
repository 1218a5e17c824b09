package api

import (
	"net/http"
	"strings"

	"example.com/ecotrack/internal/auth"
)

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activities, err := h.service.RecentActivities(r.Context(), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]FeedItem, 0, len(activities))
	for _, a := range activities {
		items = append(items, FeedItem{
			ActivityID:    a.ID,
			OwnerID:       a.OwnerID,
			OwnerName:     a.OwnerName,
			Kind:          string(a.Kind),
			Subtype:       a.Subtype,
			Description:   a.Description,
			EstimatedMass: a.EstimatedMass,
			RecordedAt:    a.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, FeedResponse{Items: items})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	entries, err := h.service.Leaderboard(r.Context(), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]LeaderboardView, 0, len(entries))
	for i, e := range entries {
		items = append(items, LeaderboardView{
			Rank:      i + 1,
			OwnerID:   e.OwnerID,
			Name:      e.Name,
			Score:     e.Score,
			UpdatedAt: e.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Items: items})
}

func (h *Handler) challenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	challenge, err := h.service.CurrentChallenge(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeView{
		ID:               challenge.ID,
		Title:            challenge.Title,
		Description:      challenge.Description,
		StartDate:        challenge.StartDate,
		EndDate:          challenge.EndDate,
		Progress:         challenge.Progress,
		ParticipantCount: len(challenge.Participants),
		Joined:           challenge.HasParticipant(claims.Subject),
	})
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCommunityWrite)
	if !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if err := h.service.JoinChallenge(r.Context(), claims.Subject, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JoinChallengeResponse{ChallengeID: id, Joined: true})
}
